package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	echoapi "github.com/guigasprogramador/oneeduca/apps/api/echo"
	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db      *sql.DB // nil with the memory engine
	certSvc *certificate.Service
	usrSvc  *user.Service
	conf    *core.Config
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]              - run a goose command (up, up-to, down, redo, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME [-id ID] [-roles student] - create a profile")
	fmt.Fprintln(cli.out, "  issue -user ID -course ID           - issue the certificate of a learner")
	fmt.Fprintln(cli.out, "  batch -course ID                    - issue the certificates of every learner who completed the course")
	fmt.Fprintln(cli.out, "  sweep                               - run batch over every course")
	fmt.Fprintln(cli.out, "  stats -course ID                    - print the certificate stats of a course")
	fmt.Fprintln(cli.out, "  revoke -id ID                       - delete a certificate")
	fmt.Fprintln(cli.out, "  token -user ID [-email] [-name] [-roles admin,professor] - sign an API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	issueCmd := flag.NewFlagSet("issue", flag.ContinueOnError)
	issueUser := issueCmd.String("user", "", "The learner's id.")
	issueCourse := issueCmd.String("course", "", "The course's id.")

	batchCmd := flag.NewFlagSet("batch", flag.ContinueOnError)
	batchCourse := batchCmd.String("course", "", "The course's id.")

	statsCmd := flag.NewFlagSet("stats", flag.ContinueOnError)
	statsCourse := statsCmd.String("course", "", "The course's id.")

	revokeCmd := flag.NewFlagSet("revoke", flag.ContinueOnError)
	revokeID := revokeCmd.String("id", "", "The certificate's id (verification code).")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserID := addUserCmd.String("id", "", "The user's id, as known by the auth provider. Generated when empty.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserRoles := addUserCmd.String("roles", user.RoleStudent, "Comma separated roles.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUser := tokenCmd.String("user", "", "The subject (user id) of the token.")
	tokenEmail := tokenCmd.String("email", "", "The user's email.")
	tokenName := tokenCmd.String("name", "", "The user's display name.")
	tokenRoles := tokenCmd.String("roles", "", "Comma separated roles.")

	for _, fs := range []*flag.FlagSet{addUserCmd, issueCmd, batchCmd, statsCmd, revokeCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		profile, err := cli.usrSvc.Create(ctx, user.NewProfile{
			ID:    *addUserID,
			Name:  *addUserName,
			Email: *addUserEmail,
			Roles: splitRoles(*addUserRoles),
		})
		if err != nil {
			return err
		}
		return cli.print(profile)

	case "issue":
		if err := issueCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *issueUser == "" || *issueCourse == "" {
			issueCmd.Usage()
			return errHelp
		}
		cert, err := cli.certSvc.Issue(ctx, *issueUser, *issueCourse)
		if err != nil {
			return err
		}
		return cli.print(cert)

	case "batch":
		if err := batchCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *batchCourse == "" {
			batchCmd.Usage()
			return errHelp
		}
		report, err := cli.certSvc.IssueBatch(ctx, *batchCourse)
		if err != nil {
			return err
		}
		return cli.print(report)

	case "sweep":
		reports, err := cli.certSvc.SweepCompleted(ctx)
		if err != nil {
			return err
		}
		return cli.print(reports)

	case "stats":
		if err := statsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *statsCourse == "" {
			statsCmd.Usage()
			return errHelp
		}
		stats, err := cli.certSvc.Stats(ctx, *statsCourse)
		if err != nil {
			return err
		}
		return cli.print(stats)

	case "revoke":
		if err := revokeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *revokeID == "" {
			revokeCmd.Usage()
			return errHelp
		}
		if err := cli.certSvc.Revoke(ctx, *revokeID); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "certificate %s revoked\n", *revokeID)
		return nil

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(core.Identity{
			ID:    *tokenUser,
			Email: *tokenEmail,
			Name:  *tokenName,
			Roles: splitRoles(*tokenRoles),
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) token(identity core.Identity) error {
	ttl := cli.conf.Server.JWTExpirationDelta
	if ttl <= 0 {
		ttl = time.Hour
	}
	token, err := echoapi.GenerateToken(echoapi.NewClaims(identity, cli.conf.AppName, ttl), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) print(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = core.CleanString(r, true); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

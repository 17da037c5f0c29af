// Command vaultcli exercises the vault core from a terminal: register an
// account, log in, store and read encrypted fields, and try the
// remember-me token flow.
//
// Usage:
//
//	vaultcli register -n <username>
//	vaultcli login -n <username>
//	vaultcli put -n <username> -f <field> -v <value>
//	vaultcli get -n <username> -f <field>
//	vaultcli remember -n <username>
//	vaultcli recall -v <token> -f <field>
//	vaultcli sweep
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/heartline/vault/internal/app"
	"github.com/heartline/vault/internal/auth"
	"github.com/heartline/vault/internal/common"
	"github.com/heartline/vault/internal/config"
)

// readPassword is a seam for term.ReadPassword.
var readPassword = term.ReadPassword

func getPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: vaultcli <register|login|put|get|remember|recall|sweep> [flags]")
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	username := fs.String("n", "", "username")
	field := fs.String("f", "", "field name")
	value := fs.String("v", "", "field value")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}

	login := func() (userID string, key []byte, err error) {
		password, err := getPassword("Enter password: ")
		if err != nil {
			return "", nil, err
		}
		defer common.WipeByteArray(password)

		l, err := a.Credentials.Verify(ctx, *username, password)
		if err != nil {
			return "", nil, err
		}
		return l.UserID, l.VaultKey, nil
	}

	switch command {
	case "register":
		password, err := getPassword("Choose password: ")
		if err != nil {
			return err
		}
		defer common.WipeByteArray(password)

		userID, err := a.Credentials.Register(ctx, *username, password)
		if err != nil {
			return err
		}
		fmt.Println(userID)
		return nil

	case "login":
		// verify the password and print a short-lived access token
		userID, key, err := login()
		if err != nil {
			return err
		}
		common.WipeByteArray(key)

		token, err := auth.GenerateToken(userID, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil

	case "put":
		userID, key, err := login()
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		if err := a.Records.PutField(ctx, userID, *field, key, []byte(*value)); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "get":
		userID, key, err := login()
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		plaintext, err := a.Records.GetField(ctx, userID, *field, key)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", plaintext)
		return nil

	case "remember":
		userID, key, err := login()
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		token, err := a.Sessions.Issue(ctx, userID, key, cfg.SessionTokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil

	case "recall":
		// read a field using a remember-me token instead of a password
		userID, key, err := a.Sessions.Verify(ctx, *value)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(key)

		plaintext, err := a.Records.GetField(ctx, userID, *field, key)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", plaintext)
		return nil

	case "sweep":
		n, err := a.Sessions.SweepExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("swept %d expired tokens\n", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vaultcli: %v\n", err)
		os.Exit(1)
	}
}

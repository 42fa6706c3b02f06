package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lendconsole/dashboard/internal/app"
)

func newHashTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token",
		Short: "Hash an API token for API_TOKEN_HASH",
		Long:  "Read a bearer token from stdin and print the bcrypt hash to place in API_TOKEN_HASH.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read token: %w", err)
			}
			token := strings.TrimSpace(line)
			if token == "" {
				return errors.New("token must not be empty")
			}
			hash, err := app.HashToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}


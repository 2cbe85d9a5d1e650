package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/backend"
)

// readPassword reads the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}

func newPasswdCmd() *cobra.Command {
	var scheme string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Hash a password read from standard input",
		Long: `Hash a password read from standard input for the userPassword attribute.

Schemes: SHA256, SSHA256, SHA512, SSHA512, BCRYPT, CLEARTEXT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hashed, err := backend.HashPassword(password, "{"+strings.Trim(scheme, "{}")+"}")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&scheme, "scheme", "s", "SSHA256", "Hash scheme")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// parseAttributes groups name=value pairs into attributes, keeping the
// order in which names first appear.
func parseAttributes(pairs []string) ([]ldap.Attribute, error) {
	var attrs []ldap.Attribute
	index := make(map[string]int)

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid attribute %q, expected name=value", pair)
		}

		key := strings.ToLower(name)
		if i, seen := index[key]; seen {
			attrs[i].Values = append(attrs[i].Values, []byte(value))
			continue
		}
		index[key] = len(attrs)
		attrs = append(attrs, ldap.NewAttribute(name, value))
	}
	return attrs, nil
}

func newAddCmd() *cobra.Command {
	var (
		client  clientFlags
		entryDN string
		pairs   []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an entry through the engine",
		Example: `  obacore add -c obacore.yaml --dn uid=alice,dc=example,dc=com \
    -a objectClass=person -a cn=Alice -a sn=Smith`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(pairs) == 0 {
				return errors.New("at least one --attr is required")
			}
			attrs, err := parseAttributes(pairs)
			if err != nil {
				return err
			}

			err = client.withSession(cmd.OutOrStdout(), cmd.ErrOrStderr(), func(sess *session) error {
				r, err := sess.do(&ldap.AddRequest{Entry: entryDN, Attributes: attrs})
				if err != nil {
					return err
				}
				return resultError(r)
			})
			if err != nil {
				return fmt.Errorf("add failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", entryDN)
			return nil
		},
	}

	client.register(cmd)
	cmd.Flags().StringVar(&entryDN, "dn", "", "DN of the new entry")
	cmd.Flags().StringArrayVarP(&pairs, "attr", "a", nil, "Attribute as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("dn")
	return cmd
}

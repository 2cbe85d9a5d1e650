package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obacore/internal/ldap"
)

// shutdownTimeout bounds how long a command waits for the work queue to
// drain.
const shutdownTimeout = 10 * time.Second

// clientFlags are shared by the commands that open a session.
type clientFlags struct {
	configFile string
	bindDN     string
	password   string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&f.bindDN, "bind", "D", "", "DN to bind as first")
	cmd.Flags().StringVarP(&f.password, "password", "w", "", "Password for --bind")
}

// withSession builds the stack, binds when requested and runs fn on a
// fresh connection. Entries go to out and engine logs to logs.
func (f *clientFlags) withSession(out, logs io.Writer, fn func(*session) error) error {
	cfg, err := loadConfig(f.configFile)
	if err != nil {
		return err
	}
	st, err := newStack(cfg, logs)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.close(ctx); err != nil {
			fmt.Fprintf(logs, "shutdown: %v\n", err)
		}
	}()

	sess, err := openSession(st, out)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.bind(f.bindDN, f.password); err != nil {
		return fmt.Errorf("bind failed: %w", err)
	}
	return fn(sess)
}

func parseScope(s string) (ldap.SearchScope, error) {
	switch strings.ToLower(s) {
	case "base":
		return ldap.ScopeBaseObject, nil
	case "one", "onelevel":
		return ldap.ScopeSingleLevel, nil
	case "sub", "subtree":
		return ldap.ScopeWholeSubtree, nil
	default:
		return 0, fmt.Errorf("invalid scope %q", s)
	}
}

func newSearchCmd() *cobra.Command {
	var (
		client    clientFlags
		base      string
		scope     string
		filter    string
		sizeLimit int
		typesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "search [attribute...]",
		Short: "Run a search through the engine and print the entries as LDIF",
		Long: `Run a search through the engine and print the entries as LDIF.

Without --base the root DSE is searched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			searchScope, err := parseScope(scope)
			if err != nil {
				return err
			}
			req := &ldap.SearchRequest{
				BaseObject: base,
				Scope:      searchScope,
				SizeLimit:  sizeLimit,
				TypesOnly:  typesOnly,
				Filter:     filter,
				Attributes: args,
			}

			out := cmd.OutOrStdout()
			return client.withSession(out, cmd.ErrOrStderr(), func(sess *session) error {
				r, err := sess.do(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# numEntries: %d\n", sess.sink.entryCount())
				if err := resultError(r); err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				return nil
			})
		},
	}

	client.register(cmd)
	cmd.Flags().StringVarP(&base, "base", "b", "", "Search base DN")
	cmd.Flags().StringVarP(&scope, "scope", "s", "base", "Search scope: base, one, sub")
	cmd.Flags().StringVarP(&filter, "filter", "f", "(objectClass=*)", "Search filter")
	cmd.Flags().IntVarP(&sizeLimit, "size-limit", "z", 0, "Maximum number of entries")
	cmd.Flags().BoolVar(&typesOnly, "types-only", false, "Return attribute names without values")
	return cmd
}

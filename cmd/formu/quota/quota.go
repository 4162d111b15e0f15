// Package quotacmder provides the quota command, which shows the caller's plan
// and remaining usage allowance.
package quotacmder

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/formu/pkg/cliui"
	"github.com/papercomputeco/formu/pkg/quota"
	"github.com/papercomputeco/formu/pkg/session"
)

type quotaCommander struct {
	json bool
}

const quotaLongDesc string = `Show your plan and remaining usage allowance.

Reads the allowance for the token given with --token or FORMU_AUTH_TOKEN.
Without a token, or when the session has expired, the plan is shown as
"please log in".

Examples:
  formu quota
  formu quota --json`

const quotaShortDesc string = "Show remaining usage allowance"

func NewQuotaCmd() *cobra.Command {
	cmder := &quotaCommander{}

	cmd := &cobra.Command{
		Use:   "quota",
		Short: quotaShortDesc,
		Long:  quotaLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := session.FromCommand(cmd, nil, false)
			if err != nil {
				return err
			}
			defer sess.Close()

			if cmder.json {
				return writeJSON(cmd.OutOrStdout(), sess.Quota.Refresh(cmd.Context()))
			}

			var snap quota.Snapshot
			_ = cliui.Step(cmd.ErrOrStderr(), "Fetching usage from "+sess.Client.BaseURL(), func() error {
				snap = sess.Quota.Refresh(cmd.Context())
				return nil
			})
			writeSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the snapshot as JSON")

	return cmd
}

func writeJSON(w io.Writer, snap quota.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func writeSummary(w io.Writer, snap quota.Snapshot) {
	fmt.Fprintf(w, "\n  %s\n\n", cliui.QuotaBadge(snap))

	if snap.IsLoggedOut() {
		fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render("Set FORMU_AUTH_TOKEN or pass --token to log in."))
		return
	}

	if snap.UserType != "" {
		fmt.Fprintln(w, cliui.KeyValue("Account", snap.UserType))
	}
	fmt.Fprintln(w, cliui.KeyValue("Used", strconv.Itoa(snap.Used)))
	fmt.Fprintln(w, cliui.KeyValue("Remaining", snap.Remaining.String()))
	fmt.Fprintln(w, cliui.KeyValue("Limit", snap.MaxUsage.String()))
	fmt.Fprintln(w, cliui.KeyValue("Can submit", strconv.FormatBool(snap.CanUse)))
	fmt.Fprintln(w)
}

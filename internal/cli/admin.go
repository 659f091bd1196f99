package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tontine/internal/backend"
	"tontine/internal/core"
	"tontine/internal/ports"
	"tontine/internal/services"
)

// Session is an opened backend plus the engine wired over it.
type Session struct {
	Type   backend.BackendType
	Store  backend.Store
	Engine *backend.Engine
	Close  func() error
}

// OpenFunc opens a session for one admin command.
type OpenFunc func(ctx context.Context) (*Session, error)

type adminFlags struct {
	json   bool
	actor  string
	roles  []string
	mode   string
	typeID int64
	status string
	group  string
}

// NewAdminCommand builds the tontine-admin command tree.
func NewAdminCommand(open OpenFunc) *cobra.Command {
	f := &adminFlags{}
	root := &cobra.Command{
		Use:           "tontine-admin",
		Short:         "Administer meetings, summaries and payouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&f.json, "json", false, "Print JSON instead of tables")

	withSession := func(run func(cmd *cobra.Command, s *Session, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return run(cmd, s, args)
		}
	}

	transition := &cobra.Command{
		Use:   "transition <meeting-id> <status>",
		Short: "Move a meeting through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(cmd *cobra.Command, s *Session, args []string) error {
			id, err := parseArgID("meeting-id", args[0])
			if err != nil {
				return err
			}
			to, err := core.ParseMeetingStatus(strings.ToLower(args[1]))
			if err != nil {
				return err
			}
			before, err := s.Store.GetMeeting(cmd.Context(), id)
			if err != nil {
				return err
			}
			m, err := s.Engine.Meetings.Transition(cmd.Context(), id, to, ports.Actor{Name: f.actor, Roles: f.roles})
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Meeting %d: %s -> %s\n", m.ID, before.Status, m.Status)
			return nil
		}),
	}
	transition.Flags().StringVar(&f.actor, "actor", os.Getenv("USER"), "Name recorded for the transition")
	transition.Flags().StringSliceVar(&f.roles, "roles", nil, "Roles held by the actor, comma separated")

	view := &cobra.Command{
		Use:   "view <meeting-id>",
		Short: "Show the contribution grid of a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *Session, args []string) error {
			id, err := parseArgID("meeting-id", args[0])
			if err != nil {
				return err
			}
			v, err := s.Engine.Meetings.MeetingView(cmd.Context(), id)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), v)
			}
			members, types, err := names(cmd.Context(), s.Store)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderMeetingView(v, members, types))
			return nil
		}),
	}

	summary := &cobra.Command{
		Use:   "summary <period-id>",
		Short: "Aggregate a fiscal period per member",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *Session, args []string) error {
			id, err := parseArgID("period-id", args[0])
			if err != nil {
				return err
			}
			mode, err := services.ParseAggregateMode(f.mode)
			if err != nil {
				return err
			}
			opts := services.AggregateOptions{Mode: mode, TypeID: f.typeID, Group: f.group}
			if f.status != "" {
				if opts.Status, err = core.ParseSettlementStatus(strings.ToLower(f.status)); err != nil {
					return err
				}
			}
			period, err := s.Store.GetFiscalPeriod(cmd.Context(), id)
			if err != nil {
				return err
			}
			rows, err := s.Engine.Summaries.Aggregate(cmd.Context(), id, opts)
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderSummary(period, string(mode), rows))
			return nil
		}),
	}
	summary.Flags().StringVar(&f.mode, "mode", string(services.ModeAnnual), "annual or meeting")
	summary.Flags().Int64Var(&f.typeID, "type", 0, "Only this contribution type")
	summary.Flags().StringVar(&f.status, "status", "", "Only members with this status (solde, partiel, impaye)")
	summary.Flags().StringVar(&f.group, "group", "", "Only members of this group")

	payout := &cobra.Command{
		Use:   "payout <member-id> <period-id>",
		Short: "Compute a beneficiary's net payout",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(func(cmd *cobra.Command, s *Session, args []string) error {
			memberID, err := parseArgID("member-id", args[0])
			if err != nil {
				return err
			}
			periodID, err := parseArgID("period-id", args[1])
			if err != nil {
				return err
			}
			member, err := s.Store.GetMember(cmd.Context(), memberID)
			if err != nil {
				return err
			}
			p, payoutErr := s.Engine.Payouts.ComputeNetPayout(cmd.Context(), memberID, periodID)
			if payoutErr != nil && !errors.Is(payoutErr, core.ErrPayoutUnavailable) {
				return payoutErr
			}
			if f.json {
				if err := writeJSON(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), RenderPayout(member.Name, p))
			}
			return payoutErr
		}),
	}

	seed := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a JSON seed file into the sqlite backend",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(func(cmd *cobra.Command, s *Session, args []string) error {
			if s.Type != backend.SQLiteBackend {
				return fmt.Errorf("seed needs the sqlite backend; the %s backend reads DATA_DIR/seed.json at start", s.Type)
			}
			data, err := core.ReadSeedFile(args[0])
			if err != nil {
				return err
			}
			if err := s.Store.Load(cmd.Context(), data); err != nil {
				return err
			}
			s.Engine.Ledger.Reloaded(cmd.Context())
			t := Table{
				Title:   "Seed loaded from " + args[0],
				Headers: []string{"Entity", "Rows"},
				Rows: [][]string{
					{"members", strconv.Itoa(len(data.Members))},
					{"contribution types", strconv.Itoa(len(data.Types))},
					{"overrides", strconv.Itoa(len(data.Overrides))},
					{"fiscal periods", strconv.Itoa(len(data.Periods))},
					{"meetings", strconv.Itoa(len(data.Meetings))},
					{"contributions", strconv.Itoa(len(data.Contributions))},
					{"sanctions", strconv.Itoa(len(data.Sanctions))},
				},
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderTable(t))
			return nil
		}),
	}

	periods := &cobra.Command{
		Use:   "periods",
		Short: "List fiscal periods",
		Args:  cobra.NoArgs,
		RunE: withSession(func(cmd *cobra.Command, s *Session, _ []string) error {
			list, err := s.Store.ListFiscalPeriods(cmd.Context())
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderTitle("FISCAL PERIODS"))
			t := Table{Headers: []string{"ID", "Name", "Start", "End", "Status"}}
			for _, p := range list {
				t.Rows = append(t.Rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.Start.String(), p.End.String(), string(p.Status)})
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderTable(t))
			return nil
		}),
	}

	root.AddCommand(transition, view, summary, payout, seed, periods)
	return root
}

func parseArgID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func names(ctx context.Context, store ports.Store) (map[int64]string, map[int64]string, error) {
	members, err := store.ListMembers(ctx)
	if err != nil {
		return nil, nil, err
	}
	types, err := store.ListContributionTypes(ctx)
	if err != nil {
		return nil, nil, err
	}
	m := make(map[int64]string, len(members))
	for _, x := range members {
		m[x.ID] = x.Name
	}
	t := make(map[int64]string, len(types))
	for _, x := range types {
		t[x.ID] = x.Name
	}
	return m, t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

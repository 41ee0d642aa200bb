package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/spf13/cobra"

	"github.com/aragon/admin-plugin-deployments/chain/evm"
	"github.com/aragon/admin-plugin-deployments/deployment/queue"
	"github.com/aragon/admin-plugin-deployments/engine/commands/flags"
	"github.com/aragon/admin-plugin-deployments/engine/commands/text"
)

var (
	queueShort = "Verification and managing DAO queues"

	queueShowShort = "Show the queued verifications and managing DAO actions"

	queueExportShort = "Export the managing DAO actions as an MCMS timelock proposal"

	queueExportLong = text.LongDesc(`
		Writes every queued managing DAO action of a network as one batch of an MCMS timelock
		schedule proposal, for managing authorities that execute through an MCMS timelock.
	`)

	queueExportExample = text.Examples(`
		# Export the sepolia actions to proposal.json
		osx-plugin queue export --network sepolia --chain-id 11155111 \
		  --timelock 0x1111111111111111111111111111111111111111 \
		  --mcm 0x2222222222222222222222222222222222222222 --out proposal.json
	`)
)

func newQueueCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: queueShort,
	}

	cmd.AddCommand(newQueueShowCmd(cfg))
	cmd.AddCommand(newQueueExportCmd(cfg))

	return cmd
}

// openQueue opens the queue of the --network network without connecting to it.
func openQueue(cmd *cobra.Command, cfg Config) (*queue.Queue, error) {
	c, err := loadConfig(cmd, cfg)
	if err != nil {
		return nil, err
	}

	network := flags.MustString(cmd.Flags().GetString("network"))

	return queue.New(c.Paths.QueueDir, network, cfg.Logger.Named("queue")), nil
}

func newQueueShowCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: queueShowShort,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := openQueue(cmd, cfg)
			if err != nil {
				return err
			}

			verifications, err := q.Verifications()
			if err != nil {
				return err
			}
			actions, err := q.Actions()
			if err != nil {
				return err
			}

			cmd.Print(renderQueue(verifications, actions))

			return nil
		},
	}

	envFlags(cmd)

	return cmd
}

func renderQueue(verifications []queue.VerificationEntry, actions []queue.Action) string {
	var b strings.Builder

	vt := table.NewWriter()
	vt.SetTitle(fmt.Sprintf("Verifications (%d)", len(verifications)))
	vt.AppendHeader(table.Row{"ID", "Address", "Args"})
	for _, v := range verifications {
		vt.AppendRow(table.Row{v.ID, v.Address.Hex(), fmt.Sprint(v.Args...)})
	}
	vt.SetStyle(table.StyleLight)
	b.WriteString(vt.Render())
	b.WriteString("\n")

	at := table.NewWriter()
	at.SetTitle(fmt.Sprintf("Managing DAO actions (%d)", len(actions)))
	at.AppendHeader(table.Row{"ID", "To", "Value", "Description"})
	for _, a := range actions {
		at.AppendRow(table.Row{a.ID, a.To.Hex(), a.Value.String(), a.Description})
	}
	at.SetStyle(table.StyleLight)
	b.WriteString(at.Render())
	b.WriteString("\n")

	return b.String()
}

type exportFlags struct {
	chainID     uint64
	timelock    string
	mcm         string
	delay       time.Duration
	validFor    time.Duration
	description string
	out         string
}

func newQueueExportCmd(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "export",
		Short:   queueExportShort,
		Long:    queueExportLong,
		Example: queueExportExample,
		RunE: func(cmd *cobra.Command, _ []string) error {
			chainID, _ := cmd.Flags().GetUint64("chain-id")
			delay, _ := cmd.Flags().GetDuration("delay")
			validFor, _ := cmd.Flags().GetDuration("valid-for")

			f := exportFlags{
				chainID:     chainID,
				timelock:    flags.MustString(cmd.Flags().GetString("timelock")),
				mcm:         flags.MustString(cmd.Flags().GetString("mcm")),
				delay:       delay,
				validFor:    validFor,
				description: flags.MustString(cmd.Flags().GetString("description")),
				out:         flags.MustString(cmd.Flags().GetString("out")),
			}

			return runQueueExport(cmd, cfg, f)
		},
	}

	envFlags(cmd)
	flags.Output(cmd, "")
	cmd.Flags().Uint64("chain-id", 0, "Chain ID of the network (required)")
	cmd.Flags().String("timelock", "", "Address of the RBAC timelock (required)")
	cmd.Flags().String("mcm", "", "Address of the proposer ManyChainMultiSig (required)")
	cmd.Flags().Duration("delay", 24*time.Hour, "Timelock delay of the scheduled batch")
	cmd.Flags().Duration("valid-for", 72*time.Hour, "How long the proposal can be signed for")
	cmd.Flags().String("description", "", "Proposal description, defaults to the first action's")
	_ = cmd.MarkFlagRequired("chain-id")
	_ = cmd.MarkFlagRequired("timelock")
	_ = cmd.MarkFlagRequired("mcm")

	return cmd
}

func runQueueExport(cmd *cobra.Command, cfg Config, f exportFlags) error {
	selector, err := chainsel.SelectorFromChainId(f.chainID)
	if err != nil {
		return fmt.Errorf("unknown chain ID %d: %w", f.chainID, err)
	}
	timelock, err := evm.ParseAddress(f.timelock)
	if err != nil {
		return fmt.Errorf("invalid --timelock: %w", err)
	}
	mcm, err := evm.ParseAddress(f.mcm)
	if err != nil {
		return fmt.Errorf("invalid --mcm: %w", err)
	}

	q, err := openQueue(cmd, cfg)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.out != "" {
		if err = os.MkdirAll(filepath.Dir(f.out), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(f.out), err)
		}
		file, ferr := os.Create(f.out)
		if ferr != nil {
			return fmt.Errorf("failed to create %s: %w", f.out, ferr)
		}
		defer file.Close()
		w = file
	}

	err = q.WriteTimelockProposal(w, queue.ProposalConfig{
		ChainSelector:   selector,
		TimelockAddress: timelock,
		MCMAddress:      mcm,
		Delay:           f.delay,
		ValidUntil:      time.Now().Add(f.validFor),
		Description:     f.description,
	})
	if err != nil {
		return err
	}

	if f.out != "" {
		cmd.Printf("✅ Wrote timelock proposal for %s to %s\n", q.Network(), f.out)
	}

	return nil
}

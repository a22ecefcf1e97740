// Command payoutctl is the operator CLI for closing dream boards, driving
// payouts by hand, reconciling payments and flushing partner events.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"dreamboard/internal/bootstrap"
	"dreamboard/internal/domain"
	"dreamboard/internal/infra"
)

type globalFlags struct {
	output   string
	operator string
}

func main() {
	_ = godotenv.Load()

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "payoutctl",
		Short:         "Operate dream board settlement and payouts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.output, "output", "o", "yaml", "Output format (yaml, json)")
	root.PersistentFlags().StringVar(&flags.operator, "operator", "payoutctl", "Operator id recorded on audit entries")

	root.AddCommand(closeCmd(flags))
	root.AddCommand(payoutsCmd(flags))
	root.AddCommand(eventsCmd(flags))
	root.AddCommand(paymentsCmd(flags))
	root.AddCommand(credentialsCmd(flags))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "payoutctl:", err)
		os.Exit(1)
	}
}

// withContainer loads configuration, builds the service graph and hands it
// to fn. Logs go to stderr so stdout stays machine readable.
func withContainer(cmd *cobra.Command, fn func(*bootstrap.Container) error) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLoggerTo(cmd.ErrOrStderr(), cfg.AppEnv, "payoutctl")
	container, err := bootstrap.New(cmd.Context(), cfg, logger, "payoutctl")
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(container)
}

func (f *globalFlags) actor() domain.Actor {
	return domain.Actor{Type: domain.ActorAdmin, ID: f.operator}
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

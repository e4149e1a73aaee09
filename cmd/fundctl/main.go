package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tamwill-backend/pkg/config"
	"github.com/angelmondragon/tamwill-backend/pkg/instance"
	"github.com/angelmondragon/tamwill-backend/pkg/logger"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	root := newRootCmd(bootstrap)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrapFunc opens the dependencies a command needs. The returned closer
// releases them.
type bootstrapFunc func(ctx context.Context) (*app, func() error, error)

func newRootCmd(boot bootstrapFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "fundctl",
		Short:         "Operator tooling for contribution reconciliation and ledger audits",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print results as JSON")

	root.AddCommand(reconcileCmd(boot))
	root.AddCommand(auditCmd(boot))
	return root
}

// withApp runs fn against a bootstrapped app and closes it afterwards.
func withApp(cmd *cobra.Command, boot bootstrapFunc, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, closeFn, err := boot(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeFn())
	}()
	return fn(ctx, a)
}

func cliLogger(app config.AppConfig) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "fundctl",
		Level:       logger.ParseLevel(app.LogLevel),
		Format:      app.LogFormat,
		Instance:    instance.GetID(),
		Output:      os.Stderr,
	})
}

package sync

import (
	"fmt"

	"assessync/cmd/client/cmd/cli"

	"github.com/spf13/cobra"
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Отправить очередь и сверить данные с сервером",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}
		if !app.IsOnline() {
			return fmt.Errorf("сервер недоступен, изменения остаются в очереди")
		}

		report, err := app.Sync(cmd.Context())
		if report != nil {
			if perr := cli.PrinterFor(cmd).Report(report); perr != nil {
				return perr
			}
		}
		if err != nil {
			return fmt.Errorf("ошибка синхронизации: %w", err)
		}
		return nil
	},
}

var RunCmd = &cobra.Command{
	Use:         "run",
	Short:       "Работать в фоне: следить за сетью и синхронизировать по расписанию",
	Annotations: map[string]string{cli.ManagedLifecycle: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		app.AddSyncListener(cli.EventPrinter(cmd.OutOrStdout()))
		return app.Run()
	},
}

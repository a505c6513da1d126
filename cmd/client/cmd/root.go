package cmd

import (
	"fmt"
	"os"

	"assessync/cmd/client/cmd/cli"
	"assessync/cmd/client/cmd/outbox"
	"assessync/cmd/client/cmd/record"
	"assessync/cmd/client/cmd/sync"
	"assessync/internal/app/client"
	"assessync/internal/app/client/config"
	"assessync/internal/utils/logger"

	"github.com/spf13/cobra"
)

var (
	app        *client.App
	serverAddr string
	offline    bool
)

var rootCmd = &cobra.Command{
	Use:   "assessync",
	Short: "Assessync - офлайн-клиент сервиса оценок",
	Long: `Assessync работает с локальной копией данных и без сети: изменения
копятся в очереди и отправляются на сервер, как только он становится доступен.
После отправки локальные данные сверяются с сервером.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: shutdownApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if serverAddr != "" {
		cfg.ServerAddress = serverAddr
	}

	log := logger.New(cfg.Env)

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	// Разовые команды не запускают фоновый монитор, поэтому состояние сети
	// определяется одной проверкой.
	if cmd.Annotations[cli.ManagedLifecycle] == "" {
		if offline {
			err = app.SetOnline(cmd.Context(), false)
		} else {
			app.Probe(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("ошибка установки состояния сети: %w", err)
		}
	}

	cmd.SetContext(cli.WithApp(cmd.Context(), app))
	return nil
}

func shutdownApp(cmd *cobra.Command, _ []string) error {
	if app == nil || cmd.Annotations[cli.ManagedLifecycle] != "" {
		return nil
	}
	return app.Shutdown()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "адрес сервера (host:port)")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "работать без обращения к серверу")
	rootCmd.PersistentFlags().Bool("json", false, "вывод в формате JSON")

	rootCmd.AddCommand(record.GetCmd)
	rootCmd.AddCommand(record.MutateCmd)
	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(sync.RunCmd)
	rootCmd.AddCommand(outbox.OutboxCmd)
	outbox.OutboxCmd.AddCommand(outbox.ListCmd)
	outbox.OutboxCmd.AddCommand(outbox.RequeueCmd)
	outbox.OutboxCmd.AddCommand(outbox.RemoveCmd)
}

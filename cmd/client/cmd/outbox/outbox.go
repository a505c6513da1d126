package outbox

import (
	"fmt"

	"assessync/cmd/client/cmd/cli"

	"github.com/spf13/cobra"
)

var OutboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Очередь неотправленных изменений",
}

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать очередь в порядке отправки",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		items, err := app.Outbox().Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка чтения очереди: %w", err)
		}
		return cli.PrinterFor(cmd).Items(items)
	},
}

var RequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Сбросить счётчик попыток исчерпанного изменения",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		item, err := app.Outbox().Requeue(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка повтора %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Изменение %s %s %s снова в очереди\n",
			item.Operation, item.EntityType, item.EntityID)
		return nil
	},
}

var RemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Удалить изменение из очереди без отправки",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		item, err := app.Outbox().Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ошибка удаления %s: %w", args[0], err)
		}
		if err := app.Outbox().Remove(cmd.Context(), item.ID); err != nil {
			return fmt.Errorf("ошибка удаления %s: %w", args[0], err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Изменение %s %s %s удалено из очереди\n",
			item.Operation, item.EntityType, item.EntityID)
		return nil
	},
}

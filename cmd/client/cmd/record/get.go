package record

import (
	"errors"
	"fmt"

	"assessync/cmd/client/cmd/cli"
	"assessync/internal/app/client/gateway"
	"assessync/internal/domain/entity"

	"github.com/spf13/cobra"
)

var GetCmd = &cobra.Command{
	Use:   "get <type> [id]",
	Short: "Показать записи",
	Long: `Читает записи с сервера и обновляет локальную копию. Без сети или при
ошибке сервера показывает локальную копию.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		var id string
		if len(args) == 2 {
			id = args[1]
		}

		records, err := app.Get(cmd.Context(), entity.Type(args[0]), id)
		if err != nil {
			var noData *gateway.NoLocalDataError
			if errors.As(err, &noData) {
				return fmt.Errorf("нет данных: сервер недоступен, локальная копия %s пуста", noData.Type)
			}
			return fmt.Errorf("ошибка чтения %s: %w", args[0], err)
		}

		return cli.PrinterFor(cmd).Records(records)
	},
}

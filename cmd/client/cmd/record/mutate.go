package record

import (
	"fmt"

	"assessync/cmd/client/cmd/cli"
	"assessync/internal/domain/entity"

	"github.com/spf13/cobra"
)

var (
	mutateData string
	mutateID   string
)

var MutateCmd = &cobra.Command{
	Use:   "mutate <type> <create|update|delete>",
	Short: "Создать, изменить или удалить запись",
	Long: `Изменение сразу применяется к локальной копии. Если сервер недоступен,
оно ставится в очередь и будет отправлено при следующей синхронизации.`,
	Example: `  assessync mutate categories create --data '{"name":"Safety"}'
  assessync mutate questions update --id 12 --data '{"text":"Exit is clear?"}'
  assessync mutate questions delete --id 12`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.App(cmd)
		if err != nil {
			return err
		}

		op := entity.Operation(args[1])
		if err := op.Validate(); err != nil {
			return err
		}
		if op != entity.OpCreate && mutateID == "" {
			return fmt.Errorf("для %s нужен --id", op)
		}

		payload, err := cli.ParsePayload(mutateData)
		if err != nil {
			return err
		}

		rec, err := app.Mutate(cmd.Context(), entity.Type(args[0]), op, mutateID, payload)
		if err != nil {
			return fmt.Errorf("ошибка %s %s: %w", op, args[0], err)
		}

		if rec == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Готово")
			return nil
		}
		return cli.PrinterFor(cmd).Records([]*entity.Record{rec})
	},
}

func init() {
	MutateCmd.Flags().StringVarP(&mutateData, "data", "d", "", "данные записи в JSON")
	MutateCmd.Flags().StringVar(&mutateID, "id", "", "идентификатор записи (для update и delete)")
}

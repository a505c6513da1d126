// Package cli общие для команд клиента контекст приложения и вывод.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"assessync/internal/app/client"
	"assessync/internal/app/client/events"
	"assessync/internal/app/client/outbox"
	"assessync/internal/domain/entity"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// ManagedLifecycle аннотация команды, которая сама останавливает приложение.
const ManagedLifecycle = "managed-lifecycle"

type appKey struct{}

func WithApp(ctx context.Context, app *client.App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// App достаёт приложение, созданное корневой командой.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(appKey{}).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

// Printer печатает таблицу в терминал и JSON во всех остальных случаях.
type Printer struct {
	out  io.Writer
	json bool
}

// NewPrinter выбирает формат: --json или вывод не в терминал дают JSON.
func NewPrinter(out *os.File, forceJSON bool) *Printer {
	return &Printer{
		out:  out,
		json: forceJSON || !term.IsTerminal(int(out.Fd())),
	}
}

func NewWriterPrinter(out io.Writer, asJSON bool) *Printer {
	return &Printer{out: out, json: asJSON}
}

func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) Records(records []*entity.Record) error {
	if p.json {
		return p.JSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(p.out, "Записи не найдены")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tТип\tСтатус\tИзменено\tДанные\t\n")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			rec.ID,
			rec.Type,
			rec.SyncStatus,
			rec.UpdatedAt.Format("2006-01-02 15:04"),
			truncate(fields(rec.Data), 60),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(p.out, "\nВсего записей: %d\n", len(records))
	return nil
}

func (p *Printer) Items(items []*outbox.Item) error {
	if p.json {
		return p.JSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(p.out, "Очередь пуста")
		return nil
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tТип\tОперация\tЗапись\tПриоритет\tПопытки\tОшибка\t\n")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\t\n",
			item.ID,
			item.EntityType,
			item.Operation,
			item.EntityID,
			item.Priority,
			item.RetryCount,
			item.MaxRetries,
			truncate(item.LastError, 40),
		)
	}
	return w.Flush()
}

func (p *Printer) Report(report *client.SyncReport) error {
	if p.json {
		return p.JSON(report)
	}

	s := report.Summary()
	fmt.Fprintf(p.out, "Синхронизация за %s\n", report.EndTime.Sub(report.StartTime).Round(1e6))
	fmt.Fprintf(p.out, "  отправлено: %d, ошибок: %d, в очереди: %d\n", s.Drained, s.Failed, s.Remaining)
	fmt.Fprintf(p.out, "  добавлено: %d, обновлено: %d, удалено: %d\n", s.Added, s.Updated, s.Deleted)
	if report.Reconcile != nil {
		diverged := report.Reconcile.Diverged()
		types := make([]string, 0, len(diverged))
		for t := range diverged {
			types = append(types, t.String())
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(p.out, "  расхождения с локальными правками в %s: %s\n",
				t, strings.Join(diverged[entity.Type(t)], ", "))
		}
		if err := report.Reconcile.Err(); err != nil {
			fmt.Fprintf(p.out, "  ошибки сверки: %v\n", err)
		}
	}
	return nil
}

// ParsePayload разбирает значение флага --data.
func ParsePayload(raw string) (entity.Payload, error) {
	if strings.TrimSpace(raw) == "" {
		return entity.Payload{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var p entity.Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("некорректный JSON в --data: %w", err)
	}
	return p, nil
}

func fields(p entity.Payload) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// PrinterFor учитывает глобальный флаг --json.
func PrinterFor(cmd *cobra.Command) *Printer {
	asJSON, _ := cmd.Flags().GetBool("json")
	return NewPrinter(os.Stdout, asJSON)
}

// EventPrinter слушатель событий синхронизации для долгоживущего режима.
func EventPrinter(out io.Writer) events.Listener {
	return func(e events.Event) {
		at := e.At.Format("15:04:05")
		switch e.Type {
		case events.TypeSyncComplete:
			s := e.Summary
			if s == nil {
				s = &events.Summary{}
			}
			fmt.Fprintf(out, "%s синхронизировано: отправлено %d, добавлено %d, обновлено %d, удалено %d\n",
				at, s.Drained, s.Added, s.Updated, s.Deleted)
		case events.TypeSyncError:
			fmt.Fprintf(out, "%s ошибка синхронизации: %v\n", at, e.Err)
		default:
			fmt.Fprintf(out, "%s %s\n", at, e.Type)
		}
	}
}

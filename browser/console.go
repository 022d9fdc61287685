package browser

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// ConsoleEntry is one console line or page error surfaced to the recorder.
type ConsoleEntry struct {
	Level string // log, info, warn, error, debug, or page-error
	Text  string
	Stack string
}

// OnConsole streams console API calls and uncaught page errors to fn until
// ctx is cancelled. Delivery is fire-and-forget: a failing consumer never
// affects the page.
func (p *Page) OnConsole(ctx context.Context, fn func(ConsoleEntry)) {
	pg := p.rod.Context(ctx)
	go pg.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			fn(ConsoleEntry{
				Level: consoleLevel(e.Type),
				Text:  p.formatArgs(e.Args),
				Stack: formatStack(e.StackTrace),
			})
		},
		func(e *proto.RuntimeExceptionThrown) {
			entry := ConsoleEntry{Level: "page-error"}
			if d := e.ExceptionDetails; d != nil {
				entry.Text = d.Text
				if d.Exception != nil && d.Exception.Description != "" {
					entry.Text = d.Exception.Description
				}
				entry.Stack = formatStack(d.StackTrace)
			}
			fn(entry)
		},
	)()
}

func consoleLevel(t proto.RuntimeConsoleAPICalledType) string {
	switch t {
	case proto.RuntimeConsoleAPICalledTypeError, proto.RuntimeConsoleAPICalledTypeAssert:
		return "error"
	case proto.RuntimeConsoleAPICalledTypeWarning:
		return "warn"
	case proto.RuntimeConsoleAPICalledTypeDebug:
		return "debug"
	case proto.RuntimeConsoleAPICalledTypeInfo:
		return "info"
	default:
		return "log"
	}
}

func (p *Page) formatArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if a.Value.Val() != nil {
			parts = append(parts, a.Value.String())
			continue
		}
		parts = append(parts, a.Description)
	}
	return strings.Join(parts, " ")
}

func formatStack(st *proto.RuntimeStackTrace) string {
	if st == nil {
		return ""
	}
	var b strings.Builder
	for _, f := range st.CallFrames {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		name := f.FunctionName
		if name == "" {
			name = "<anonymous>"
		}
		b.WriteString("    at " + name + " (" + f.URL + ":")
		b.WriteString(strconv.Itoa(f.LineNumber) + ":" + strconv.Itoa(f.ColumnNumber) + ")")
	}
	return b.String()
}

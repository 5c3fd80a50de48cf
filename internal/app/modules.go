package app

import (
	"io"

	"github.com/vk/animate/internal/registry"
	"github.com/vk/animate/modules/print"
	"github.com/vk/animate/modules/socketio"
)

// coreModules is the definitive list of engine backends compiled into the
// animate binary. The dry-run backend reports on outW.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&print.Module{Out: outW},
		&socketio.Module{},
	}
}

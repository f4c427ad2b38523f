package control

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/Tesseric/careless-whisper/internal/config"
)

// request performs one op against the daemon socket and decodes the
// response into out.
func request(cfg *config.Config, op string, out any) error {
	conn, err := net.Dial("unix", cfg.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(Request{Op: op}); err != nil {
		return err
	}
	return json.NewDecoder(conn).Decode(out)
}

package server

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// listenData binds the per-session UDP socket. port 0 asks the kernel for an
// ephemeral port; the chosen port goes back to the client in the handshake
// reply. REUSEADDR/REUSEPORT keep rapid session turnover from tripping over
// sockets still in TIME_WAIT-like states.
func listenData(ctx context.Context, port int, readBufferSize int) (net.PacketConn, int, error) {
	lc := net.ListenConfig{
		Control: func(network, _ string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
		},
	}

	pc, err := lc.ListenPacket(ctx, "udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, 0, fmt.Errorf("bind udp data socket: %w", err)
	}

	if readBufferSize > 0 {
		if uc, ok := pc.(*net.UDPConn); ok {
			_ = uc.SetReadBuffer(readBufferSize)
		}
	}

	return pc, pc.LocalAddr().(*net.UDPAddr).Port, nil
}

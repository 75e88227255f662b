package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide service to other applications via KISS protocol via TCP socket.
 *
 * Description:	This provides a TCP socket for communication with a client application.
 *
 *		Every decoded message is sent to all attached clients as
 *		a KISS data frame on channel 0.
 *
 *		A client that can't keep up, or goes away, is
 *		disconnected.  Others are not affected.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const MAX_NET_CLIENTS = 3

// Don't let one stuck client hold up the dispatcher.
const kissWriteTimeout = 2 * time.Second

// KISSServer is a Sink.
type KISSServer struct {
	listener net.Listener
	logger   *log.Logger

	mu      sync.Mutex
	clients map[int]net.Conn
	nextID  int
	closed  bool

	wg sync.WaitGroup
}

/*-------------------------------------------------------------------
 *
 * Name:        ListenKISS
 *
 * Purpose:     Set up a server to listen for connection requests from
 *		an application such as Xastir or APRSIS32.
 *
 * Inputs:	addr	- e.g. ":8001".  Port 0 picks a free one.
 *
 *--------------------------------------------------------------------*/

func ListenKISS(addr string, logger *log.Logger) (*KISSServer, error) {
	var listener, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	var s = &KISSServer{ //nolint:exhaustruct
		listener: listener,
		logger:   logger.WithPrefix("kiss"),
		clients:  make(map[int]net.Conn),
	}

	s.logger.Info("Ready to accept KISS TCP client applications", "addr", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()

	return s, nil
}

// Addr is where the server is listening.
func (s *KISSServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Port is the TCP port, e.g. for DNS-SD.
func (s *KISSServer) Port() int {
	if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}

	return 0
}

func (s *KISSServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

func (s *KISSServer) acceptLoop() {
	defer s.wg.Done()

	for {
		var conn, err = s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			s.logger.Error("Accept failed", "err", err)

			continue
		}

		s.mu.Lock()

		if s.closed || len(s.clients) >= MAX_NET_CLIENTS {
			s.mu.Unlock()
			s.logger.Warn("Too many KISS TCP clients, rejecting", "remote", conn.RemoteAddr())
			conn.Close() //nolint:errcheck

			continue
		}

		var id = s.nextID
		s.nextID++
		s.clients[id] = conn
		s.mu.Unlock()

		s.logger.Info("Attached to KISS TCP client application", "client", id, "remote", conn.RemoteAddr())

		s.wg.Add(1)
		go s.readLoop(id, conn)
	}
}

// readLoop decodes whatever the client sends.  We are receive only so
// frames are just logged.  It ends when the client disconnects.
func (s *KISSServer) readLoop(id int, conn net.Conn) {
	defer s.wg.Done()
	defer s.drop(id)

	var decoder KISSDecoder
	var buf = make([]byte, 512)

	for {
		var n, err = conn.Read(buf)
		if n > 0 {
			var frames, decodeErr = decoder.Write(buf[:n])
			if decodeErr != nil {
				s.logger.Debug("Bad KISS frame from client", "client", id, "err", decodeErr)
			}

			for _, f := range frames {
				s.logger.Debug("Ignoring KISS frame from client, receive only", "client", id, "cmd", f.Command, "bytes", len(f.Data))
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("Error reading from KISS TCP client", "client", id, "err", err)
			}

			return
		}
	}
}

func (s *KISSServer) drop(id int) {
	s.mu.Lock()
	var conn, ok = s.clients[id]
	delete(s.clients, id)
	s.mu.Unlock()

	if ok {
		conn.Close() //nolint:errcheck
		s.logger.Info("Closing connection to KISS client application", "client", id)
	}
}

func (s *KISSServer) Name() string { return "kiss-tcp" }

/*-------------------------------------------------------------------
 *
 * Name:        Deliver
 *
 * Purpose:     Send a decoded message to all the client apps.
 *
 * Description:	Disconnect from client, and notify user, if any error.
 *		Not having any clients is not an error.
 *
 *--------------------------------------------------------------------*/

func (s *KISSServer) Deliver(msg Message, _ time.Time) error {
	var frame = KISSEncapsulate(0, KISS_CMD_DATA_FRAME, msg.Payload)

	s.mu.Lock()
	var conns = make(map[int]net.Conn, len(s.clients))
	for id, c := range s.clients {
		conns[id] = c
	}
	s.mu.Unlock()

	for id, c := range conns {
		c.SetWriteDeadline(time.Now().Add(kissWriteTimeout)) //nolint:errcheck

		if _, err := c.Write(frame); err != nil {
			s.logger.Warn("KISS TCP send error, disconnecting client", "client", id, "err", err)
			s.drop(id)
		}
	}

	return nil
}

// Close stops listening and disconnects all clients.
func (s *KISSServer) Close() error {
	s.mu.Lock()
	s.closed = true
	var conns = make([]net.Conn, 0, len(s.clients))
	for _, c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err = s.listener.Close()

	for _, c := range conns {
		c.Close() //nolint:errcheck
	}

	s.wg.Wait()

	return err
}

package main

import (
	"bufio"
	"errors"
	"io"
	"net"
)

// Raw TCP transport. The original protocol assumed one recv per JSON
// document, which a byte stream does not guarantee; here every record is
// one newline-terminated line, so merged writes and partial reads frame
// correctly. A line longer than maxRecordBytes is a transport error and
// drops the connection.
const maxRecordBytes = 64 * 1024

type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func newTCPConn(conn net.Conn) *tcpConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxRecordBytes)

	return &tcpConn{
		conn:    conn,
		scanner: scanner,
	}
}

func (t *tcpConn) readRecord() ([]byte, error) {
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	return t.scanner.Bytes(), nil
}

func (t *tcpConn) writeRecord(data []byte) error {
	framed := make([]byte, 0, len(data)+1)
	framed = append(framed, data...)
	framed = append(framed, '\n')

	_, err := t.conn.Write(framed)
	return err
}

func (t *tcpConn) close() error {
	return t.conn.Close()
}

func (s *server) serveTCP(ln net.Listener) error {
	logf(s.cfg, "SERVE: Players can connect on tcp://%s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		go s.handleConn(newTCPConn(conn), conn.RemoteAddr().String())
	}
}

// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"fmt"
	"net"
	"time"

	"github.com/fastfilestats/ffstats/lib/codec"
)

// Call dials the control socket, sends one request, and returns the
// response. A Response with OK == false is returned as-is, not as an
// error; transport and protocol failures are errors.
func Call(socketPath string, request Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, connDeadline)
	if err != nil {
		return Response{}, fmt.Errorf("dialing control socket %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connDeadline))

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return Response{}, fmt.Errorf("sending control request: %w", err)
	}
	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		return Response{}, fmt.Errorf("reading control response: %w", err)
	}
	return response, nil
}

func decodeRequest(conn net.Conn, request *Request) error {
	return codec.NewDecoder(conn).Decode(request)
}

func encodeResponse(conn net.Conn, response Response) error {
	return codec.NewEncoder(conn).Encode(response)
}

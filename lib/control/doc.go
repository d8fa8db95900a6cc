// Copyright 2026 The FastFileStats Authors
// SPDX-License-Identifier: Apache-2.0

// Package control defines the CBOR request/response protocol of the
// server's Unix control socket, plus a small server and client for it.
//
// The socket is the administrative side door: query build and tracking
// counters, trigger a rebuild when accumulated pending fixes warrant
// one, freeze the section into a snapshot file, thaw it again. One
// request per connection; the server encodes one response and closes.
//
// Everything here stays off the hot path — clients resolving paths
// never touch the control socket, only the mapped section.
package control

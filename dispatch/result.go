// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package dispatch

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ResultKind identifies which case of a Result is set.
type ResultKind uint8

// These constants are the cases of a Result.
const (
	StreamResult ResultKind = iota + 1
	DocumentResult
	AcknowledgmentResult
	CountResult
	SequenceResult
)

func (rk ResultKind) String() string {
	switch rk {
	case StreamResult:
		return "stream"
	case DocumentResult:
		return "document"
	case AcknowledgmentResult:
		return "acknowledgment"
	case CountResult:
		return "count"
	case SequenceResult:
		return "sequence"
	}
	return fmt.Sprintf("ResultKind(%d)", uint8(rk))
}

// Result is the outcome of executing a query. Exactly one case is set; Kind
// reports which, and the accessor for that case returns true.
type Result struct {
	kind   ResultKind
	cursor *Cursor
	doc    bson.M
	status Status
	count  int64
	values []interface{}
}

func streamResult(c *Cursor) Result { return Result{kind: StreamResult, cursor: c} }
func documentResult(doc bson.M) Result { return Result{kind: DocumentResult, doc: doc} }
func acknowledgmentResult(s Status) Result { return Result{kind: AcknowledgmentResult, status: s} }
func countResult(n int64) Result { return Result{kind: CountResult, count: n} }
func sequenceResult(v []interface{}) Result { return Result{kind: SequenceResult, values: v} }

// Kind returns the case that is set.
func (r Result) Kind() ResultKind { return r.kind }

// Cursor returns the adapted cursor of a stream result.
func (r Result) Cursor() (*Cursor, bool) { return r.cursor, r.kind == StreamResult }

// Document returns the document of a document result. The document is nil
// when a find-and-modify matched nothing.
func (r Result) Document() (bson.M, bool) { return r.doc, r.kind == DocumentResult }

// Status returns the acknowledgment of a write.
func (r Result) Status() (Status, bool) { return r.status, r.kind == AcknowledgmentResult }

// Count returns the number of a count result.
func (r Result) Count() (int64, bool) { return r.count, r.kind == CountResult }

// Values returns the values of a sequence result.
func (r Result) Values() ([]interface{}, bool) { return r.values, r.kind == SequenceResult }

// Package json wraps goccy/go-json with pooled buffers and a streaming
// encoder for scanned rows.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// RawMessage is a raw encoded JSON value whose decoding is deferred.
type RawMessage = gojson.RawMessage

// Marshal is json.Marshal backed by goccy/go-json.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is json.Unmarshal backed by goccy/go-json.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Object is a JSON object whose keys keep their insertion order. Scanned
// rows use it so fields come out in column order.
type Object struct {
	Keys   []string
	Values []interface{}
}

// NewObject pairs keys with values. Missing values encode as null.
func NewObject(keys []string, values []interface{}) Object {
	return Object{Keys: keys, Values: values}
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.WriteByte('{')
	for i, k := range o.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := gojson.Marshal(k)
		if err != nil {
			return nil, err
		}
		var v interface{}
		if i < len(o.Values) {
			v = o.Values[i]
		}
		val, err := gojson.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	// Create a copy since we're returning the buffer to the pool
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// StreamingEncoder writes values either as one JSON array or as
// newline-delimited JSON.
type StreamingEncoder struct {
	writer      io.Writer
	encoder     *gojson.Encoder
	firstRecord bool
	isArray     bool
	pretty      bool
	err         error
}

// NewStreamingEncoder creates a new streaming encoder
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)

	se := &StreamingEncoder{
		writer:      w,
		encoder:     enc,
		firstRecord: true,
		isArray:     isArray,
	}
	if isArray {
		se.write([]byte{'['})
	}
	return se
}

// SetPretty enables pretty printing
func (se *StreamingEncoder) SetPretty(pretty bool, indent string) {
	se.pretty = pretty
	if pretty {
		se.encoder.SetIndent("", indent)
	}
}

// Encode encodes a single value
func (se *StreamingEncoder) Encode(v interface{}) error {
	if se.err != nil {
		return se.err
	}
	if se.isArray {
		if !se.firstRecord {
			se.write([]byte{','})
		}
		se.firstRecord = false
	}
	if err := se.encoder.Encode(v); err != nil && se.err == nil {
		se.err = err
	}
	return se.err
}

// Close finalizes the encoding
func (se *StreamingEncoder) Close() error {
	if se.isArray {
		se.write([]byte{']', '\n'})
	}
	return se.err
}

func (se *StreamingEncoder) write(p []byte) {
	if se.err != nil {
		return
	}
	_, se.err = se.writer.Write(p)
}

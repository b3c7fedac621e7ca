// Package serializer converts common.Message values to bytes and back.
//
// Three encodings implement IRPCSerializer:
//
//   - binary: a flag byte marks which fields are present, only those are
//     written. Smallest and fastest, the default of the server and the CLI.
//
//   - json: readable on the wire, handy when debugging the http transport.
//
//   - gob: encoding/gob, kept for comparison in the benchmarks.
//
// Client and server must use the same encoding. All serializers are
// stateless and safe for concurrent use:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(msg)
//	// ... send data ...
//	var received common.Message
//	err = s.Deserialize(data, &received)
package serializer

package riva

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// collectSegments reads the top alternative of every result in a
// RecognizeResponse, merging continuations.
func collectSegments(resp protoreflect.Message) []string {
	var segments []string
	results := resp.Get(field(recognizeResponseDesc, "results")).List()
	for i := 0; i < results.Len(); i++ {
		alternatives := results.Get(i).Message().Get(field(resultDesc, "alternatives")).List()
		if alternatives.Len() == 0 {
			continue
		}
		transcript := alternatives.Get(0).Message().Get(field(alternativeDesc, "transcript")).String()
		segments = appendSegment(segments, transcript)
	}
	return segments
}

// appendSegment merges continuation segments to avoid duplicate transcript growth.
func appendSegment(segments []string, transcript string) []string {
	transcript = cleanSegment(transcript)
	if transcript == "" {
		return segments
	}
	if len(segments) == 0 {
		return append(segments, transcript)
	}

	last := segments[len(segments)-1]
	switch {
	case transcript == last, strings.HasPrefix(last, transcript):
		return segments
	case strings.HasPrefix(transcript, last):
		segments[len(segments)-1] = transcript
		return segments
	default:
		return append(segments, transcript)
	}
}

// cleanSegment normalizes transcript whitespace.
func cleanSegment(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

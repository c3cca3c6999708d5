package remotemap

import "testing"

func TestWithoutAckEventsDoNotExpectResponse(t *testing.T) {
	for _, e := range []Event{PUT_WITHOUT_ACK, REMOVE_WITHOUT_ACK, PUT_ALL_WITHOUT_ACK} {
		if e.expectsResponse() {
			t.Fatalf("%v.expectsResponse() = true, want false", e)
		}
	}
}

func TestMostEventsExpectResponse(t *testing.T) {
	for _, e := range []Event{GET, PUT, REMOVE, SIZE, CLEAR, HASH_CODE} {
		if !e.expectsResponse() {
			t.Fatalf("%v.expectsResponse() = false, want true", e)
		}
	}
}

func TestCollectionQueriesStreamChunks(t *testing.T) {
	for _, e := range []Event{KEY_SET, VALUES, ENTRY_SET} {
		if !e.streamsChunks() {
			t.Fatalf("%v.streamsChunks() = false, want true", e)
		}
	}
	if PUT.streamsChunks() {
		t.Fatalf("PUT.streamsChunks() = true, want false")
	}
}

func TestEventStringNamesMatchDeclaration(t *testing.T) {
	if GET.String() != "GET" {
		t.Fatalf("GET.String() = %q, want GET", GET.String())
	}
	if Event(255).String() != "UNKNOWN_EVENT" {
		t.Fatalf("out-of-range Event.String() = %q, want UNKNOWN_EVENT", Event(255).String())
	}
}

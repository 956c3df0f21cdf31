package messages

import "testing"

func TestGetErrorMessage(t *testing.T) {
	msg := GetErrorMesssage(UnableToLoad, "Type", "dataset", "ResourceId", "ds-1", "Error", "timeout")
	want := "Unable to load the dataset resource ds-1: 'timeout'."
	if msg != want {
		t.Fatalf("expected %q, got %q", want, msg)
	}
}

func TestGetErrorMessageMissingValue(t *testing.T) {
	msg := GetErrorMesssage(ResourceNotFound, "Type", "run", "ResourceId")
	want := "The run resource NOT_DEFINED was not found."
	if msg != want {
		t.Fatalf("expected %q, got %q", want, msg)
	}
}

func TestMessageCodes(t *testing.T) {
	cases := []struct {
		code *MessageCode
		want int
	}{
		{ResourceNotFound, 404},
		{GlobalTestCaseDeletion, 403},
		{NotAuthenticated, 401},
		{UnableToSave, 500},
	}
	for _, tc := range cases {
		if tc.code.GetCode() != tc.want {
			t.Errorf("%q: expected %d, got %d", tc.code.GetMessage(), tc.want, tc.code.GetCode())
		}
	}
}

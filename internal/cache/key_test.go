package cache

import (
	"strings"
	"testing"
)

func TestKeyPrefixesNamespace(t *testing.T) {
	key := Key("stories", "top:1")
	if !strings.HasPrefix(key, "stories:") {
		t.Errorf("Key must carry its namespace prefix, got %q", key)
	}
	if len(key) != len("stories:")+64 {
		t.Errorf("Key must append a hex digest, got %q", key)
	}
}

func TestKeyIsStableAndCollisionFree(t *testing.T) {
	if Key("stories", "top:1") != Key("stories", "top:1") {
		t.Error("Same identity must map to the same key")
	}
	if Key("stories", "top:1") == Key("stories", "top:2") {
		t.Error("Different identities must map to different keys")
	}
}

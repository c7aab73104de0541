package agent

import (
	"testing"

	"github.com/forgemesh/nodeagent/pkg/types"
)

func TestPendingCompletionBufferPutAndAll(t *testing.T) {
	b := NewPendingCompletionBuffer()

	b.Put(types.ContainerStatus{ID: id(1), State: types.ContainerStateComplete, ExitCode: 0})
	b.Put(types.ContainerStatus{ID: id(2), State: types.ContainerStateComplete, ExitCode: 1})

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}

	all := b.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d entries, want 2", len(all))
	}
}

func TestPendingCompletionBufferPutOverwrites(t *testing.T) {
	b := NewPendingCompletionBuffer()

	b.Put(types.ContainerStatus{ID: id(1), ExitCode: 0})
	b.Put(types.ContainerStatus{ID: id(1), ExitCode: 137})

	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after overwrite", b.Len())
	}

	all := b.All()
	if all[0].ExitCode != 137 {
		t.Errorf("ExitCode = %d, want 137 (latest write wins)", all[0].ExitCode)
	}
}

func TestPendingCompletionBufferClear(t *testing.T) {
	b := NewPendingCompletionBuffer()
	b.Put(types.ContainerStatus{ID: id(1)})
	b.Clear()

	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after Clear", b.Len())
	}
	if len(b.All()) != 0 {
		t.Error("All() should be empty after Clear")
	}
}

package rbac

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.ElementsMatch(t, []string{PermReadUser, PermWriteUser, PermDeleteUser}, p.Permissions(RoleAdmin))
	assert.Equal(t, []string{PermReadUser}, p.Permissions(RoleUser))
	assert.Empty(t, p.Permissions(RoleGuest))
	assert.True(t, p.HasRole(RoleGuest))
	assert.Equal(t, []string{RoleAdmin, RoleGuest, RoleUser}, p.Roles())
}

func TestPolicy_UnknownRole(t *testing.T) {
	p := DefaultPolicy()

	perms := p.Permissions("moderator")
	require.NotNil(t, perms)
	assert.Empty(t, perms)
	assert.False(t, p.HasRole("moderator"))
}

func TestPolicy_Immutable(t *testing.T) {
	source := map[string][]string{"editor": {"read:user", "read:user", "write:user"}}
	p := NewPolicy(source)

	source["editor"][0] = "tampered"
	source["intruder"] = []string{"delete:user"}

	perms := p.Permissions("editor")
	assert.Equal(t, []string{"read:user", "write:user"}, perms)
	assert.False(t, p.HasRole("intruder"))

	perms[0] = "tampered"
	assert.Equal(t, []string{"read:user", "write:user"}, p.Permissions("editor"))

	m := p.Map()
	m["editor"] = nil
	assert.Len(t, p.Permissions("editor"), 2)
}

func TestRegistry_Swap(t *testing.T) {
	r := NewRegistry(nil)
	assert.Equal(t, []string{PermReadUser}, r.Permissions(RoleUser))

	next := NewPolicy(map[string][]string{RoleUser: {PermReadUser, PermWriteUser}})
	prev := r.Swap(next)

	assert.True(t, prev.HasRole(RoleAdmin))
	assert.Equal(t, []string{PermReadUser, PermWriteUser}, r.Permissions(RoleUser))
	assert.Empty(t, r.Permissions(RoleAdmin))

	assert.Same(t, next, r.Swap(nil))
	assert.Same(t, next, r.Policy())
}

func TestRegistry_ConcurrentReadsDuringSwap(t *testing.T) {
	r := NewRegistry(DefaultPolicy())
	a := NewPolicy(map[string][]string{"x": {"p1", "p2"}})
	b := NewPolicy(map[string][]string{"x": {"q1", "q2"}})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if (i+j)%2 == 0 {
					r.Swap(a)
				} else {
					r.Swap(b)
				}
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				perms := r.Permissions("x")
				if len(perms) == 0 {
					continue
				}
				// A snapshot is never a mix of two policies.
				assert.Equal(t, perms[0][0], perms[1][0])
			}
		}()
	}
	wg.Wait()
}

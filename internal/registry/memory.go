package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemorySkillRegistry is an in-memory SkillRegistry for development mode and
// tests. Safe for concurrent use.
type MemorySkillRegistry struct {
	mu     sync.RWMutex
	skills map[string]*Skill // keyed workspace/name
}

// NewMemorySkillRegistry returns an empty in-memory registry.
func NewMemorySkillRegistry() *MemorySkillRegistry {
	return &MemorySkillRegistry{skills: make(map[string]*Skill)}
}

func (r *MemorySkillRegistry) GetSkill(_ context.Context, workspaceID, name string) (*Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	skill, ok := r.skills[cacheKey(workspaceID, name)]
	if !ok {
		return nil, nil
	}
	copied := *skill
	return &copied, nil
}

func (r *MemorySkillRegistry) ListSkills(_ context.Context, workspaceID string) ([]Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Skill
	for _, skill := range r.skills {
		if skill.WorkspaceID == workspaceID {
			out = append(out, *skill)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemorySkillRegistry) PutSkill(_ context.Context, skill Skill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	key := cacheKey(skill.WorkspaceID, skill.Name)
	if existing, ok := r.skills[key]; ok {
		skill.CreatedAt = existing.CreatedAt
	} else {
		skill.CreatedAt = now
	}
	skill.UpdatedAt = now
	r.skills[key] = &skill
	return nil
}

func (r *MemorySkillRegistry) DeleteSkill(_ context.Context, workspaceID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := cacheKey(workspaceID, name)
	if _, ok := r.skills[key]; !ok {
		return ErrSkillNotFound
	}
	delete(r.skills, key)
	return nil
}

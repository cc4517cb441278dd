package plane

import "fmt"

// Link binds an issue key to a task file. Links are one-to-one in both
// directions: an issue already linked to a different task, or a task
// already linked to a different issue, is an error naming the existing
// link. Re-linking the same pair is a no-op.
func (s *Store) Link(issueKey, taskFile string) error {
	return s.Update(func(cache *Cache) error {
		if _, ok := cache.Issues[issueKey]; !ok {
			return fmt.Errorf("issue %s not found in cache, run sync first", issueKey)
		}
		if existing, ok := cache.Linked[issueKey]; ok && existing != taskFile {
			return fmt.Errorf("issue %s already linked to %s, unlink first", issueKey, existing)
		}
		for key, task := range cache.Linked {
			if task == taskFile && key != issueKey {
				return fmt.Errorf("task %s already linked to %s", taskFile, key)
			}
		}
		cache.Linked[issueKey] = taskFile
		return nil
	})
}

// Unlink removes the link for an issue key, returning the task file it
// was bound to.
func (s *Store) Unlink(issueKey string) (string, error) {
	var taskFile string
	err := s.Update(func(cache *Cache) error {
		existing, ok := cache.Linked[issueKey]
		if !ok {
			return fmt.Errorf("issue %s is not linked to any task", issueKey)
		}
		taskFile = existing
		delete(cache.Linked, issueKey)
		return nil
	})
	if err != nil {
		return "", err
	}
	return taskFile, nil
}

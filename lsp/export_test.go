package lsp

import "github.com/rlch/phpintel/workspace"

// Watcher returns the running file watcher, if any.
func (s *Server) Watcher() *workspace.Watcher {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.watcher
}

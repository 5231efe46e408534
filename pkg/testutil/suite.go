package testutil

import (
	"os"
	"path/filepath"

	"github.com/stretchr/testify/suite"
)

// FileSuite gives every test of a suite its own scratch directory for
// configuration files. The directory is removed when the test ends.
type FileSuite struct {
	suite.Suite
	dir string
}

// SetupTest creates the scratch directory of the current test.
func (s *FileSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

// TempDir returns the scratch directory of the current test.
func (s *FileSuite) TempDir() string {
	return s.dir
}

// WriteFile writes content to name inside the scratch directory and returns
// its path.
func (s *FileSuite) WriteFile(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

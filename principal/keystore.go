package principal

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// KeyStore keeps identity seeds as hex files in a directory, one per name:
//
//	<dir>/<name>.key
//
// Files are created with mode 0600 and are never overwritten unless asked.
type KeyStore struct {
	Directory string
}

// DefaultKeyDirectory is ~/.w3clock/keys.
func DefaultKeyDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".w3clock", "keys"), nil
}

// OpenKeyStore returns a store rooted at dir, or at DefaultKeyDirectory when
// dir is empty.
func OpenKeyStore(dir string) (*KeyStore, error) {
	if dir == "" {
		var err error
		if dir, err = DefaultKeyDirectory(); err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: dir}, nil
}

func (ks *KeyStore) path(name string) string {
	return filepath.Join(ks.Directory, name+".key")
}

// Save stores id under name.
func (ks *KeyStore) Save(name string, id *Identity, overwrite bool) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	p := ks.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(p, flags, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("principal: key %q already exists", name)
		}
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(id.seed) + "\n"); err != nil {
		return "", err
	}
	return p, f.Close()
}

// Load reads the identity stored under name.
func (ks *KeyStore) Load(name string) (*Identity, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	return LoadKeyFile(ks.path(name))
}

// Derive creates a child identity of from named name and stores it as
// "<from>-<name>".
func (ks *KeyStore) Derive(from, name string, overwrite bool) (*Identity, string, error) {
	root, err := ks.Load(from)
	if err != nil {
		return nil, "", err
	}
	seed, err := DeriveSeed(root.seed, name)
	if err != nil {
		return nil, "", err
	}
	child, err := FromSeed(seed)
	if err != nil {
		return nil, "", err
	}
	p, err := ks.Save(from+"-"+name, child, overwrite)
	return child, p, err
}

// List returns the stored names, sorted.
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".key") {
			names = append(names, strings.TrimSuffix(e.Name(), ".key"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadKeyFile reads a hex seed file.
func LoadKeyFile(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed, err := ParseSeedHex(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return FromSeed(seed)
}

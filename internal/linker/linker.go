// Package linker resolves library placeholders in contract creation bytecode.
//
// Three placeholder forms are understood: the legacy solc form
// "__<name>____" padded to 40 characters, the solc 0.5+ form
// "__$<keccak prefix>$__", and byte offsets listed in linkReferences.
package linker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	placeholderLength = 40
	legacyNameLength  = 36
	hashLength        = 34
	addressLength     = common.AddressLength
)

var ErrInvalidReference = errors.New("invalid link reference")

type (
	// Library is a deployed library that can be linked into dependent bytecode.
	Library struct {
		Name       string
		SourcePath string
		Address    common.Address
	}

	// Offset locates a library address slot in bytecode, in bytes.
	Offset struct {
		Start  int `json:"start"`
		Length int `json:"length"`
	}

	// References maps source path -> library name -> address slots.
	References map[string]map[string][]Offset

	// Placeholder is an unresolved library slot found in hex bytecode.
	Placeholder struct {
		// Offset is the position in hex characters, without the 0x prefix.
		Offset int
		Raw    string
		Label  string
		Hashed bool
	}
)

// FullyQualifiedName returns "path:Name", or just the name when no source path is known.
func (l Library) FullyQualifiedName() string {
	if l.SourcePath == "" {
		return l.Name
	}
	return l.SourcePath + ":" + l.Name
}

// HashPlaceholder returns the solc 0.5+ placeholder for a fully qualified library name.
func HashPlaceholder(fullyQualifiedName string) string {
	return "__$" + placeholderHash(fullyQualifiedName) + "$__"
}

// LegacyPlaceholder returns the pre 0.5 solc placeholder for a library identifier.
func LegacyPlaceholder(identifier string) string {
	placeholder := "__" + truncate(identifier, legacyNameLength)
	return placeholder + strings.Repeat("_", placeholderLength-len(placeholder))
}

// Link returns a copy of template with every slot belonging to libs replaced by the
// library address. Slots of other libraries are left untouched.
func Link(template string, refs References, libs []Library) (string, error) {
	code := []byte(strip0x(template))

	for _, lib := range libs {
		address := []byte(addressHex(lib.Address))

		for source, byLibrary := range refs {
			if lib.SourcePath != "" && source != lib.SourcePath {
				continue
			}
			for _, offset := range byLibrary[lib.Name] {
				start, end := 2*offset.Start, 2*(offset.Start+offset.Length)
				if offset.Length != addressLength || offset.Start < 0 || end > len(code) {
					return "", fmt.Errorf("%w: %s at %d+%d", ErrInvalidReference, lib.Name, offset.Start, offset.Length)
				}
				copy(code[start:end], address)
			}
		}

		for _, placeholder := range scan(string(code)) {
			if matches(placeholder, lib) {
				copy(code[placeholder.Offset:placeholder.Offset+placeholderLength], address)
			}
		}
	}

	return "0x" + string(code), nil
}

// Unresolved lists placeholders still present in template.
func Unresolved(template string) []Placeholder {
	return scan(strip0x(template))
}

// Refers reports whether template or refs contain a slot for lib.
func Refers(template string, refs References, lib Library) bool {
	for source, byLibrary := range refs {
		if lib.SourcePath != "" && source != lib.SourcePath {
			continue
		}
		if len(byLibrary[lib.Name]) > 0 {
			return true
		}
	}

	for _, placeholder := range Unresolved(template) {
		if matches(placeholder, lib) {
			return true
		}
	}

	return false
}

func scan(code string) []Placeholder {
	var placeholders []Placeholder
	for i := 0; i < len(code); {
		idx := strings.Index(code[i:], "__")
		if idx < 0 {
			break
		}
		pos := i + idx
		end := min(pos+placeholderLength, len(code))

		placeholder := Placeholder{Offset: pos, Raw: code[pos:end]}
		if strings.HasPrefix(placeholder.Raw, "__$") && strings.HasSuffix(placeholder.Raw, "$__") && len(placeholder.Raw) == placeholderLength {
			placeholder.Hashed = true
			placeholder.Label = placeholder.Raw[3 : 3+hashLength]
		} else {
			placeholder.Label = strings.Trim(placeholder.Raw, "_")
		}

		placeholders = append(placeholders, placeholder)
		i = end
	}

	return placeholders
}

func matches(placeholder Placeholder, lib Library) bool {
	if len(placeholder.Raw) != placeholderLength {
		return false
	}

	if placeholder.Hashed {
		return placeholder.Label == placeholderHash(lib.FullyQualifiedName()) ||
			placeholder.Label == placeholderHash(lib.Name)
	}

	// Label is trimmed for display and loses underscores that end the name.
	return placeholder.Raw == LegacyPlaceholder(lib.Name) ||
		placeholder.Raw == LegacyPlaceholder(lib.FullyQualifiedName())
}

func placeholderHash(fullyQualifiedName string) string {
	return crypto.Keccak256Hash([]byte(fullyQualifiedName)).Hex()[2 : 2+hashLength]
}

func addressHex(address common.Address) string {
	return strings.ToLower(address.Hex()[2:])
}

func strip0x(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

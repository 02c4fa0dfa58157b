package credentials

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"runtime"
	"strings"
	"unicode/utf8"
)

// derivedKeyLen is the number of hex characters of the fingerprint
// digest used as the XOR key.
const derivedKeyLen = 32

// Obfuscate XORs plaintext with key (repeated to the plaintext length)
// and base64 encodes the result. This only keeps the password from being
// readable at a glance in the preferences file. Anyone with this code and
// access to the same machine can reverse it.
func Obfuscate(plaintext, key string) string {
	return base64.StdEncoding.EncodeToString(xorKey([]byte(plaintext), []byte(key)))
}

// Deobfuscate reverses Obfuscate. Input that is not valid base64, or that
// does not decode to valid UTF-8 under key, is returned unchanged so a
// corrupted or foreign value can still be seen and replaced by the user.
func Deobfuscate(ciphertext, key string) string {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ciphertext
	}

	out := xorKey(raw, []byte(key))
	if !utf8.Valid(out) {
		return ciphertext
	}

	return string(out)
}

func xorKey(data, key []byte) []byte {
	out := make([]byte, len(data))
	if len(key) == 0 {
		copy(out, data)
		return out
	}

	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}

	return out
}

// DeriveKey returns the obfuscation key for this machine: a SHA-256 of
// the home directory, OS family and platform name, hex encoded and cut to
// 32 characters. Moving the preferences file to another machine or user
// makes the stored password unreadable, which Deobfuscate tolerates.
func DeriveKey() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	return deriveKey(home, osFamily(runtime.GOOS), platformName(runtime.GOOS))
}

func deriveKey(home, family, platform string) string {
	sum := sha256.Sum256([]byte(home + family + platform))
	return hex.EncodeToString(sum[:])[:derivedKeyLen]
}

func osFamily(goos string) string {
	if goos == "windows" {
		return "nt"
	}

	return "posix"
}

func platformName(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "darwin":
		return "Darwin"
	case "linux":
		return "Linux"
	case "freebsd":
		return "FreeBSD"
	case "openbsd":
		return "OpenBSD"
	case "netbsd":
		return "NetBSD"
	}

	if goos == "" {
		return ""
	}

	return strings.ToUpper(goos[:1]) + goos[1:]
}

// Command hashpass reads the admin password from stdin and prints the bcrypt
// hash to put in AUTH_ADMIN_PASSWORD_HASH.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"Voltaris/internal/auth"

	"github.com/sirupsen/logrus"
)

const minPasswordLen = 8

var errTooShort = fmt.Errorf("password must be at least %d characters", minPasswordLen)

func main() {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	hash, err := hash(os.Stdin)
	if err != nil {
		logger.Fatalf("hashpass: %v", err)
	}
	fmt.Println(hash)
}

// hash uses the first line of r, without its line ending.
func hash(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if len([]rune(password)) < minPasswordLen {
		return "", errTooShort
	}
	return auth.HashPassword(password)
}

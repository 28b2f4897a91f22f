// Command hashpass prints a bcrypt digest suitable for seeding an admin row
// by hand. The password is taken from the first argument, or from the first
// line of stdin when no argument is given.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"asset-catalog/internal/server"
)

func main() {
	password, err := readPassword(os.Args[1:], os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpass:", err)
		os.Exit(2)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), server.PasswordCost)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpass:", err)
		os.Exit(1)
	}
	fmt.Println(string(hash))
}

func readPassword(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		if args[0] == "" {
			return "", fmt.Errorf("empty password")
		}
		return args[0], nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("usage: hashpass <password> (or pipe it on stdin)")
	}
	return line, nil
}

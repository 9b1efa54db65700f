package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// terminalPrompter answers login prompts from a terminal or a pipe.
type terminalPrompter struct {
	in     *bufio.Reader
	out    io.Writer
	phone  string
	hidden bool
	// fd is the terminal used for hidden password input.
	fd int
}

func newTerminalPrompter(in io.Reader, out io.Writer, phone string, hidden bool) *terminalPrompter {
	return &terminalPrompter{
		in:     bufio.NewReader(in),
		out:    out,
		phone:  strings.TrimSpace(phone),
		hidden: hidden,
		fd:     int(os.Stdin.Fd()),
	}
}

func (p *terminalPrompter) Phone(ctx context.Context) (string, error) {
	if p.phone != "" {
		return p.phone, nil
	}
	return p.ask(ctx, "Phone number (international format, e.g. +15550102030): ")
}

func (p *terminalPrompter) Code(ctx context.Context) (string, error) {
	return p.ask(ctx, "Login code sent by Telegram: ")
}

func (p *terminalPrompter) Password(ctx context.Context) (string, error) {
	if !p.hidden || !term.IsTerminal(p.fd) {
		return p.ask(ctx, "Two-step verification password: ")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, "Two-step verification password: ")
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (p *terminalPrompter) ask(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

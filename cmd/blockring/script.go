package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	brb "github.com/sushydev/block_ring_buffer_go"
)

// runScript executes one command per line against buffer and reports the
// result code and stats of every operation to w. Caller errors such as
// InsufficientSpace are reported and the script continues; internal errors
// abort it.
func runScript(buffer brb.BlockBufferInterface, r io.Reader, w io.Writer, logger *zap.Logger) error {
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		command, rest, _ := strings.Cut(text, " ")
		rest = strings.TrimSpace(rest)

		if err := runCommand(buffer, command, rest, w); err != nil {
			if !isCallerError(err) {
				return errors.Wrapf(err, "line %d", line)
			}
			logger.Debug("command failed", zap.Int("line", line), zap.String("command", command), zap.Error(err))
		}
	}

	return scanner.Err()
}

func isCallerError(err error) bool {
	switch brb.CodeOf(err) {
	case brb.InsufficientSpace, brb.DuplicateKey, brb.NotFound:
		return true
	}
	return false
}

func runCommand(buffer brb.BlockBufferInterface, command, rest string, w io.Writer) error {
	report := func(op string, stats brb.Stats, err error) error {
		fmt.Fprintf(w, "%s: %s %s\n", op, brb.CodeOf(err), stats)
		return err
	}

	switch command {
	case "add":
		key, raw, _ := strings.Cut(rest, " ")
		if key == "" {
			return errors.New("add: missing key")
		}
		data, err := parseData(raw)
		if err != nil {
			return err
		}
		stats, err := buffer.Add(brb.Key(key), data)
		return report("add "+key, stats, err)

	case "addhash":
		data, err := parseData(rest)
		if err != nil {
			return err
		}
		key := brb.KeyFromContent(data)
		stats, err := buffer.Add(key, data)
		return report("add "+string(key), stats, err)

	case "del":
		stats, err := buffer.Delete(brb.Key(rest))
		return report("del "+rest, stats, err)

	case "get":
		p, err := buffer.Get(brb.Key(rest))
		if err != nil {
			fmt.Fprintf(w, "get %s: %s\n", rest, brb.CodeOf(err))
			return err
		}
		fmt.Fprintf(w, "get %s: %q\n", rest, p)
		return nil

	case "compact":
		stats, err := buffer.Compact()
		return report("compact", stats, err)

	case "flush":
		_, err := buffer.WriteTo(w)
		return err

	case "stats":
		fmt.Fprintf(w, "stats: %s\n", buffer.Stats())
		return nil

	case "layout":
		for _, block := range buffer.Layout() {
			state := "live"
			if block.DeletePending {
				state = "pending"
			}
			fmt.Fprintf(w, "%s\toffset=%d\tsize=%d\t%s\n", block.Key, block.Offset, block.Size, state)
		}
		return nil
	}

	return errors.Errorf("unknown command %q", command)
}

// parseData accepts raw text or a double-quoted Go string literal.
func parseData(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, `"`) {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid quoted data %s", raw)
		}
		return []byte(s), nil
	}

	return []byte(raw), nil
}

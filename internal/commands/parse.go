package commands

import (
	"strings"
)

// Command represents a parsed user command.
type Command struct {
	Name string   // Command name (lowercase)
	Args []string // Arguments after the command name
}

// Known command names
const (
	// Customer commands
	CmdNew    = "new"
	CmdPay    = "pay"
	CmdCancel = "cancel"
	CmdStatus = "status"
	CmdHelp   = "help"

	// Admin commands
	CmdFulfill = "fulfill"
	CmdOrders  = "orders"
)

// Parse extracts a command from message content.
// Returns nil if the message is empty or contains only whitespace.
func Parse(content string) *Command {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	parts := strings.Fields(content)
	if len(parts) == 0 {
		return nil
	}

	return &Command{
		Name: strings.ToLower(parts[0]),
		Args: parts[1:],
	}
}

// IsCustomerCommand returns true if the command is available to everyone.
func (c *Command) IsCustomerCommand() bool {
	switch c.Name {
	case CmdNew, CmdPay, CmdCancel, CmdStatus, CmdHelp:
		return true
	default:
		return false
	}
}

// IsAdminCommand returns true if the command requires admin privileges.
func (c *Command) IsAdminCommand() bool {
	switch c.Name {
	case CmdFulfill, CmdOrders:
		return true
	default:
		return false
	}
}

// IsValid returns true if the command name is recognized.
func (c *Command) IsValid() bool {
	return c.IsCustomerCommand() || c.IsAdminCommand()
}

package commands

import (
	"errors"
	"slices"
)

// ErrAdminRequired is returned when a non-admin sends an admin command.
var ErrAdminRequired = errors.New("admin command requires admin privileges")

// IsAdmin checks if the given npub is in the admin list.
func IsAdmin(npub string, admins []string) bool {
	return slices.Contains(admins, npub)
}

// CanExecute returns an error if the sender lacks permission to run the command.
// Admins can execute any command; everyone else only customer commands.
func CanExecute(cmd *Command, senderNpub string, admins []string) error {
	if IsAdmin(senderNpub, admins) {
		return nil
	}
	if cmd.IsAdminCommand() {
		return ErrAdminRequired
	}
	return nil
}

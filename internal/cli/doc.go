// Package cli implements the interactive OurChat terminal client.
//
// The client is a read-eval-print loop over the chat services: account
// registration and sign-in, the user directory, the conversation list and
// per-conversation messaging, including photo and video attachments.
//
// Commands
//
//	Not signed in:
//	  - help           — show available commands
//	  - register       — create an account
//	  - login          — sign in with email and password
//	  - social         — sign in with an external identity provider
//	  - exit | quit    — leave the program
//
//	Signed in:
//	  - help           — show available commands
//	  - users          — list all registered users
//	  - find           — search users by name or email
//	  - list           — list conversations with latest-message previews
//	  - open           — open (or start) a conversation with a user
//	  - send           — send a text message in the open conversation
//	  - photo          — send a photo attachment
//	  - video          — send a video attachment
//	  - read           — mark the open conversation as read
//	  - profile        — show a user's profile picture URL
//	  - setpic         — upload your own profile picture
//	  - logout         — sign out
//	  - exit | quit    — leave the program
//
// Interactive prompts collect command parameters; commands take no
// positional arguments.
package cli

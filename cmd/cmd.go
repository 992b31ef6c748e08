// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

func deviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "Connect device name (defaults to player.device_name, then the active device)",
	}
}

// setupCommand handles setup operations for configuration and storage.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example configuration file to --config",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the sqlite database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Database file (defaults to storage.path)",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the latest migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify login",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with Spotify (authorization code with PKCE)",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: 5 * time.Minute,
					},
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorize URL without opening a browser",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored credential",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the stored credential",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Fetch the profile to prove the credential works",
					},
					jsonFlag(),
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the access token now",
				Action: r.AuthRefresh,
			},
		},
	}
}

// searchCommand searches the catalogue for tracks.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search Spotify for tracks",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of tracks (1-50)",
				Value:   20,
			},
			jsonFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the results to a file instead of stdout",
			},
		},
		Action: r.Search,
	}
}

// libraryCommand browses the signed in user's library.
func libraryCommand(r *Runner) *cli.Command {
	outputFlags := func() []cli.Flag {
		return []cli.Flag{
			jsonFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the tracks to a file instead of stdout",
			},
		}
	}

	return &cli.Command{
		Name:    "library",
		Aliases: []string{"lib"},
		Usage:   "Browse your Spotify library",
		Commands: []*cli.Command{
			{
				Name:   "playlists",
				Usage:  "List your playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.LibraryPlaylists,
			},
			{
				Name:  "top",
				Usage: "List your most played tracks",
				Flags: append(outputFlags(), &cli.StringFlag{
					Name:  "range",
					Usage: "short_term, medium_term or long_term",
					Value: "medium_term",
				}),
				Action: r.LibraryTop,
			},
			{
				Name:  "export",
				Usage: "Export every playlist to its own file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, csv, markdown or json",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Output directory (default: spotify_export_{epoch})",
					},
					&cli.StringFlag{
						Name:  "match",
						Usage: "Only playlists whose name contains this text",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent exports (max 10)",
						Value: 5,
					},
				},
				Action: r.LibraryExport,
			},
			{
				Name:      "artist",
				Usage:     "List tracks by an artist",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  outputFlags(),
				Action: r.LibraryArtist,
			},
		},
	}
}

// playerCommand drives a Spotify Connect device through the playback coordinator.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"p"},
		Usage:   "Control playback on a Spotify Connect device",
		Commands: []*cli.Command{
			{
				Name:   "devices",
				Usage:  "List available Connect devices",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PlayerDevices,
			},
			{
				Name:   "status",
				Usage:  "Show what is playing",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PlayerStatus,
			},
			{
				Name:      "play",
				Usage:     "Play a track",
				ArgsUsage: "<spotify:track:uri>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "uri"},
				},
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.PlayerPlay,
			},
			{
				Name:   "toggle",
				Usage:  "Pause or resume",
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.PlayerToggle,
			},
			{
				Name:      "seek",
				Usage:     "Seek within the current track",
				ArgsUsage: "<ms|m:ss>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.PlayerSeek,
			},
			{
				Name:      "volume",
				Usage:     "Set the volume",
				ArgsUsage: "<0-100>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "percent"},
				},
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.PlayerVolume,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Flags:  []cli.Flag{deviceFlag()},
				Action: r.PlayerNext,
			},
			{
				Name:    "previous",
				Aliases: []string{"prev"},
				Usage:   "Go back to the previous track",
				Flags:   []cli.Flag{deviceFlag()},
				Action:  r.PlayerPrevious,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Raw authorized Web API calls",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "GET a Web API path and print the response",
				ArgsUsage: "<path>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON bodies",
						Value: true,
					},
					&cli.BoolFlag{
						Name:    "headers",
						Aliases: []string{"i"},
						Usage:   "Print the status line and headers",
					},
				},
				Action: r.APIGet,
			},
		},
	}
}

// serveCommand runs the HTTP server with the browser player bridge.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the login routes, JSON API and browser player",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (defaults to server.port)",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the player page in a browser",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the terminal player",
		Flags:   []cli.Flag{deviceFlag()},
		Action:  r.TUI,
	}
}

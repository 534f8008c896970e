// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// setupCommand handles first run setup of the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml if it does not exist",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// serverCommand manages the saved server address.
func serverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Manage the OpenList server address",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Normalize and save the server address",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Test the server after saving",
					},
				},
				Action: r.ServerSet,
			},
			{
				Name:   "show",
				Usage:  "Print the saved server address",
				Action: r.ServerShow,
			},
			{
				Name:   "clear",
				Usage:  "Forget the saved server address",
				Action: r.ServerClear,
			},
			{
				Name:  "check",
				Usage: "Test whether a server is reachable (defaults to the saved one)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags:  jsonFlags(),
				Action: r.ServerCheck,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in to the saved server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "username",
						Aliases: []string{"u"},
						Usage:   "Account name",
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password (prompted when omitted)",
						Sources: cli.EnvVars("OLX_PASSWORD"),
					},
					&cli.BoolFlag{
						Name:  "remember",
						Usage: "Save the password for automatic login",
						Value: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and remove the saved session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Validate the saved session and show the current account",
				Flags: append(jsonFlags(), &cli.IntFlag{
					Name:  "attempts",
					Usage: "Also list the most recent login attempts",
				}),
				Action: r.AuthStatus,
			},
			{
				Name:   "auto",
				Usage:  "Sign in with remembered credentials",
				Action: r.AuthAuto,
			},
			{
				Name:   "clear",
				Usage:  "Remove saved credentials but keep the server address",
				Action: r.AuthClear,
			},
		},
	}
}

// fsCommand handles remote file operations.
func fsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fs",
		Usage: "Browse and manage remote files",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List a remote directory",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path", Value: "/"},
				},
				Flags: append(jsonFlags(),
					&cli.BoolFlag{
						Name:  "refresh",
						Usage: "Ask the server to refresh its cache",
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Folder password",
					},
				),
				Action: r.FSList,
			},
			{
				Name:  "get",
				Usage: "Show details and the raw link of a remote file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  jsonFlags(),
				Action: r.FSGet,
			},
			{
				Name:  "search",
				Usage: "Search the server index",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "keywords"},
				},
				Flags: append(jsonFlags(),
					&cli.StringFlag{
						Name:  "parent",
						Usage: "Directory to search under",
						Value: "/",
					},
					&cli.StringFlag{
						Name:  "scope",
						Usage: "all, folders or files",
						Value: "all",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 100,
					},
				),
				Action: r.FSSearch,
			},
			{
				Name:  "mkdir",
				Usage: "Create a remote directory",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.FSMkdir,
			},
			{
				Name:  "rename",
				Usage: "Rename a remote file or directory",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
					&cli.StringArg{Name: "name"},
				},
				Action: r.FSRename,
			},
			{
				Name:      "rm",
				Usage:     "Remove remote files",
				ArgsUsage: "PATH...",
				Action:    r.FSRemove,
			},
			{
				Name:  "open",
				Usage: "Open a remote file in the default application and record media in history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.FSOpen,
			},
			{
				Name:  "export",
				Usage: "Walk a remote tree and write a listing file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path", Value: "/"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent directory listings",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "depth",
						Usage: "Maximum depth, 0 for unlimited",
					},
					&cli.Float64Flag{
						Name:  "rate",
						Usage: "Listing requests per second",
						Value: 5,
					},
				},
				Action: r.FSExport,
			},
		},
	}
}

// storageCommand lists mounted storages (admin only).
func storageCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "storage",
		Usage: "Inspect server storages",
		Commands: []*cli.Command{
			{
				Name:   "ls",
				Usage:  "List mounted storages (admin only)",
				Flags:  jsonFlags(),
				Action: r.StorageList,
			},
		},
	}
}

// historyCommand manages the local play history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Manage the local play history",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List recently opened media",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 20,
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Filter by file name",
					},
					&cli.StringFlag{
						Name:  "server",
						Usage: "Only entries from this server",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "json, csv, markdown or txt",
						Value:   "txt",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "rm",
				Usage: "Delete one history entry",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.HistoryRemove,
			},
			{
				Name:   "clear",
				Usage:  "Delete all history entries",
				Action: r.HistoryClear,
			},
			{
				Name:  "cleanup",
				Usage: "Delete entries and login attempts older than a number of days",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "Age in days",
						Value: 90,
					},
				},
				Action: r.HistoryCleanup,
			},
		},
	}
}

// diagnoseCommand reports network state and server reachability.
func diagnoseCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "diagnose",
		Usage: "Check the network and the server and suggest fixes",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags:  jsonFlags(),
		Action: r.Diagnose,
	}
}

// apiCommand handles direct API calls against the saved server
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls to the OpenList server",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags:  jsonFlags(),
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive browsing.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive file browser",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "root",
				Usage: "Directory to start in",
				Value: "/",
			},
		},
		Action: r.TUI,
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/olx/internal/formatter"
	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/desertthunder/olx/internal/tasks"
	"github.com/urfave/cli/v3"
)

func requirePath(cmd *cli.Command, name string) (string, error) {
	p := strings.TrimSpace(cmd.StringArg(name))
	if p == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return shared.CleanRemotePath(p), nil
}

// FSList lists a remote directory.
func (r *Runner) FSList(ctx context.Context, cmd *cli.Command) error {
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	path := shared.CleanRemotePath(cmd.StringArg("path"))
	res, err := api.List(ctx, models.ListRequest{
		Path:     path,
		Password: cmd.String("password"),
		Refresh:  cmd.Bool("refresh"),
	})
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", path, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d items)", path, res.Total))
	for _, o := range res.Content {
		r.writePlain("%s\n", describe(o))
	}
	return nil
}

func describe(o models.Object) string {
	modified := ""
	if !o.Modified.IsZero() {
		modified = o.Modified.Local().Format("2006-01-02 15:04")
	}
	if o.IsDir {
		return fmt.Sprintf("%-10s  %s  %s/", "-", modified, o.Name)
	}
	return fmt.Sprintf("%-10s  %s  %s", shared.FormatSize(o.Size), modified, o.Name)
}

// FSGet shows details and the raw link of a remote file.
func (r *Runner) FSGet(ctx context.Context, cmd *cli.Command) error {
	path, err := requirePath(cmd, "path")
	if err != nil {
		return err
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	obj, err := api.Stat(ctx, models.GetRequest{Path: path})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", path, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(obj, cmd.Bool("pretty"))
	}

	r.writePlainHeader(obj.Name)
	r.writePlain("Path:     %s\n", path)
	r.writePlain("Size:     %s\n", shared.FormatSize(obj.Size))
	r.writePlain("Modified: %s\n", obj.Modified.Local().Format("2006-01-02 15:04:05"))
	if obj.Provider != "" {
		r.writePlain("Provider: %s\n", obj.Provider)
	}
	if obj.RawURL != "" {
		r.writePlain("Raw URL:  %s\n", obj.RawURL)
	}
	return nil
}

func parseScope(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return models.ScopeAll, nil
	case "folders", "dirs":
		return models.ScopeFolders, nil
	case "files":
		return models.ScopeFiles, nil
	}
	return 0, fmt.Errorf("%w: scope %q", shared.ErrInvalidArgument, s)
}

// FSSearch searches the server index.
func (r *Runner) FSSearch(ctx context.Context, cmd *cli.Command) error {
	keywords := strings.TrimSpace(cmd.StringArg("keywords"))
	if keywords == "" {
		return fmt.Errorf("%w: keywords", shared.ErrMissingArgument)
	}
	scope, err := parseScope(cmd.String("scope"))
	if err != nil {
		return err
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	res, err := api.Search(ctx, models.SearchRequest{
		Parent:   shared.CleanRemotePath(cmd.String("parent")),
		Keywords: keywords,
		Scope:    scope,
		Page:     1,
		PerPage:  cmd.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%q: %d results", keywords, res.Total))
	for _, o := range res.Content {
		p := shared.JoinRemotePath(o.Parent, o.Name)
		if o.IsDir {
			p += "/"
		}
		r.writePlain("%s\n", p)
	}
	return nil
}

// FSMkdir creates a remote directory.
func (r *Runner) FSMkdir(ctx context.Context, cmd *cli.Command) error {
	path, err := requirePath(cmd, "path")
	if err != nil {
		return err
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	if err := api.Mkdir(ctx, path); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return r.writePlain("✓ Created %s\n", path)
}

// FSRename renames a remote file or directory.
func (r *Runner) FSRename(ctx context.Context, cmd *cli.Command) error {
	path, err := requirePath(cmd, "path")
	if err != nil {
		return err
	}
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: new name must be a single path element", shared.ErrInvalidArgument)
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	if err := api.Rename(ctx, path, name); err != nil {
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return r.writePlain("✓ Renamed %s to %s\n", path, name)
}

// FSRemove removes remote files, grouping them by parent directory.
func (r *Runner) FSRemove(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return fmt.Errorf("%w: at least one path", shared.ErrMissingArgument)
	}

	var dirs []string
	names := map[string][]string{}
	for _, a := range args {
		p := shared.CleanRemotePath(a)
		if p == "/" {
			return fmt.Errorf("%w: refusing to remove /", shared.ErrInvalidArgument)
		}
		i := strings.LastIndex(p, "/")
		dir, name := shared.CleanRemotePath(p[:i]), p[i+1:]
		if _, ok := names[dir]; !ok {
			dirs = append(dirs, dir)
		}
		names[dir] = append(names[dir], name)
	}

	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if err := api.Remove(ctx, dir, names[dir]...); err != nil {
			return fmt.Errorf("failed to remove from %s: %w", dir, err)
		}
		r.logger.Info("removed", "dir", dir, "names", names[dir])
	}
	return r.writePlain("✓ Removed %d item(s)\n", len(args))
}

// FSOpen opens a remote file with the system handler. Media files are
// recorded in the play history.
func (r *Runner) FSOpen(ctx context.Context, cmd *cli.Command) error {
	path, err := requirePath(cmd, "path")
	if err != nil {
		return err
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	obj, err := api.Stat(ctx, models.GetRequest{Path: path})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", path, err)
	}
	if obj.IsDir {
		return fmt.Errorf("%w: %s is a directory", shared.ErrInvalidArgument, path)
	}
	if obj.RawURL == "" {
		return fmt.Errorf("%w: no download link for %s", shared.ErrNotFound, path)
	}
	if obj.Path == "" {
		obj.Path = path
	}

	if shared.IsMedia(obj.Name) || obj.Type == models.TypeVideo || obj.Type == models.TypeAudio {
		if repo, err := r.history(); err != nil {
			r.logger.Warn("play history unavailable", "err", err)
		} else if h, err := repo.Record(models.PlayHistoryFromObject(api.BaseURL(), *obj)); err != nil {
			r.logger.Warn("failed to record play history", "path", path, "err", err)
		} else {
			r.logger.Debug("recorded play", "id", h.ID(), "plays", h.PlayCount())
		}
	}

	if err := r.open(obj.RawURL); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	return r.writePlain("✓ Opened %s\n", obj.Name)
}

// FSExport walks a remote tree and writes a listing plus manifest.
func (r *Runner) FSExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	root := shared.CleanRemotePath(cmd.StringArg("path"))
	opts := tasks.ExportOpts{
		WalkOpts: tasks.WalkOpts{
			Workers:   cmd.Int("workers"),
			RateLimit: cmd.Float64("rate"),
			MaxDepth:  cmd.Int("depth"),
		},
		Format: format,
		Output: cmd.String("output"),
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			switch u.Phase {
			case tasks.ListDirectory:
				r.logger.Debug(u.Message)
			default:
				r.logger.Info(u.Message)
			}
		}
	}()

	walker := tasks.NewWalker(api, shared.WithLogger(r.logger, "component", "walker"))
	res, err := walker.Export(ctx, progress, root, opts)
	close(progress)
	<-done
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	w := res.Walk
	r.writePlainHeader("Export complete")
	r.writePlain("Root:        %s\n", w.Root)
	r.writePlain("Directories: %d\n", w.Directories)
	r.writePlain("Files:       %d (%s)\n", w.Files, shared.FormatSize(w.TotalSize))
	r.writePlain("Listing:     %s\n", res.ListingPath)
	r.writePlain("Manifest:    %s\n", res.ManifestPath)
	if len(w.Errors) > 0 {
		r.writePlainln("%d directories could not be listed:", len(w.Errors))
		for _, e := range w.Errors {
			r.writePlain("  ✗ %s\n", e.Error())
		}
	}
	return nil
}

// StorageList lists mounted storages (admin only).
func (r *Runner) StorageList(ctx context.Context, cmd *cli.Command) error {
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	res, err := api.Storages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list storages: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Storages (%d)", res.Total))
	for _, s := range res.Content {
		state := s.Status
		if s.Disabled {
			state = "disabled"
		}
		r.writePlain("%-24s %-14s %s\n", s.MountPath, s.Driver, state)
	}
	return nil
}

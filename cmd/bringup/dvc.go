package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mentorchita/ecommerce-start/internal/console"
	"github.com/mentorchita/ecommerce-start/internal/dvc"
)

func newDVCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dvc",
		Short: "Run the DVC steps of the bring-up on their own",
	}
	cmd.AddCommand(newDVCInitCmd(), newDVCTrackCmd())
	return cmd
}

func newDVCInitCmd() *cobra.Command {
	var opts dvc.Options
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize git and DVC, register the remote and pull data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := console.New(cmd.OutOrStdout())
			out.Header("DVC")

			res, err := app.Bootstrapper().Bootstrap(cmd.Context(), opts)
			for _, s := range res.Steps {
				switch s.Status {
				case dvc.StepDone:
					out.Success("%s: %s", s.Name, s.Detail)
				case dvc.StepSkipped:
					out.Skipped("%s: %s", s.Name, s.Detail)
				default:
					out.Warning("%s: %s", s.Name, s.Detail)
				}
			}
			if err != nil {
				out.Failure("%v", err)
				if errors.Is(err, dvc.ErrRemoteURLRequired) {
					out.Hint("pass --remote-url URL or set dvc.remote_url")
				}
				return err
			}
			out.Info("remote %s (%s) -> %s", res.RemoteName, res.RemoteType, res.RemoteURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.RemoteType, "remote-type", "", "remote type: local, s3, gdrive, azure, gs, ssh (default from config)")
	cmd.Flags().StringVar(&opts.RemoteURL, "remote-url", "", "remote URL, required for non-local remotes")
	cmd.Flags().StringVar(&opts.RemoteName, "remote-name", "", "remote name (default from config)")
	return cmd
}

func newDVCTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track [dirs...]",
		Short: "Put large files under DVC control and commit the pointers",
		Long: `track runs "dvc add" for every file above dvc.track_threshold_bytes in the
given directories (default dvc.track_dirs) that is not tracked yet, then
commits the .dvc pointer files with git.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs := args
			if len(dirs) == 0 {
				dirs = cfg.DVC.TrackDirs
			}

			out := console.New(cmd.OutOrStdout())
			out.Header("DVC tracking")

			res, err := app.Tracker().Track(cmd.Context(), dirs)
			if err != nil {
				return err
			}
			for _, p := range res.Added {
				out.Success("tracked %s", p)
			}
			for _, f := range res.Failed {
				out.Warning("could not track %s: %v", f.Path, f.Err)
			}
			out.Info("added %d, already tracked %d, below threshold %d", len(res.Added), len(res.SkippedTracked), len(res.SkippedSmall))
			if res.Committed {
				out.Success("committed .dvc files")
			}
			return nil
		},
	}
}

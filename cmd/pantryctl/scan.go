package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/pantry-receipts/internal/pipeline"
	"github.com/joseph-ayodele/pantry-receipts/internal/server"
)

var scanCmd = &cobra.Command{
	Use:   "scan <image|dir>...",
	Short: "Scan receipt images (directories are walked for images)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID()
		if err != nil {
			return err
		}
		preferVision, _ := cmd.Flags().GetBool("prefer-vision")
		remote, _ := cmd.Flags().GetString("remote")

		paths, err := collectImages(args)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
		defer cancel()

		var scan func(ctx context.Context, image []byte) (any, error)
		if remote != "" {
			conn, err := grpc.NewClient(remote,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(32<<20)),
			)
			if err != nil {
				return fmt.Errorf("dial %s: %w", remote, err)
			}
			defer conn.Close()
			client := server.NewScanClient(conn)
			scan = func(ctx context.Context, image []byte) (any, error) {
				return client.Scan(ctx, &server.ScanRequest{UserID: user, Image: image, PreferVision: preferVision})
			}
		} else {
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			scan = func(ctx context.Context, image []byte) (any, error) {
				return a.Orchestrator.Scan(ctx, pipeline.ScanRequest{UserID: user, Image: image, PreferVision: preferVision})
			}
		}

		failed := 0
		for _, p := range paths {
			image, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			res, err := scan(ctx, image)
			if err != nil {
				failed++
				code := pipeline.CodeOf(err)
				if remote != "" {
					code = server.ReasonOf(err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %v\n", p, code, err)
				continue
			}
			if err := printJSON(cmd, map[string]any{"path": p, "result": res}); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scans failed", failed, len(paths))
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().Bool("prefer-vision", true, "try the vision analyzer before OCR")
	scanCmd.Flags().String("remote", "", "pantryd gRPC address; scans locally when empty")
}

// collectImages expands directories into the image files they contain,
// skipping hidden entries and sidecars.
func collectImages(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		err = filepath.WalkDir(a, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != a && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif":
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

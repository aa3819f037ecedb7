// cmd/ravlo/commands.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/Corphon/Ravlo/internal/assets"
	"github.com/Corphon/Ravlo/internal/di"
	"github.com/Corphon/Ravlo/internal/models"
	"github.com/Corphon/Ravlo/internal/services"
	"github.com/Corphon/Ravlo/internal/storage"
	"github.com/Corphon/Ravlo/internal/styling"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ========================================
// 格式化
// ========================================

func (c *cli) formatCmd() *cobra.Command {
	var start, end int

	cmd := &cobra.Command{
		Use:       "format <bold|italic|underline|mono|reset|normalize> [text...]",
		Short:     "Apply a style to text (stdin when no text is given)",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"bold", "italic", "underline", "mono", "reset", "normalize"},
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args[1:])
			if err != nil {
				return err
			}

			req := models.FormatRequest{Text: text, Op: args[0], Whole: true}
			if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
				req.Whole = false
				req.Start, req.End = start, end
			}

			formatter := services.NewFormatterService(storage.NewMemoryStore(), nil, nil)
			result, err := formatter.Format(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text)
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "selection start (code points)")
	cmd.Flags().IntVar(&end, "end", 0, "selection end (code points)")
	return cmd
}

func (c *cli) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [text...]",
		Short: "Strip all styling back to plain text",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styling.Decode(text))
			return nil
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [text...]",
		Short: "Show length statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			st := services.Stats(text)
			printKV(cmd.OutOrStdout(), "Text stats", [][2]string{
				{"visible", strconv.Itoa(st.Visible)},
				{"code points", strconv.Itoa(st.CodePoints)},
				{"bytes", strconv.Itoa(st.Bytes)},
				{"words", strconv.Itoa(st.Words)},
			})
			return nil
		},
	}
}

// ========================================
// 草稿
// ========================================

func (c *cli) draftsCmd() *cobra.Command {
	drafts := &cobra.Command{
		Use:   "drafts",
		Short: "Manage saved drafts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List drafts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolve[*services.DraftService](c, cmd, di.Drafts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			items := svc.List()
			if len(items) == 0 {
				fmt.Fprintln(out, labelStyle.Render("no drafts"))
				return nil
			}
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d drafts", len(items))))
			for _, d := range items {
				saved := time.UnixMilli(d.Timestamp).Format("2006-01-02 15:04")
				fmt.Fprintf(out, "  %s  %s  %s\n      %s\n",
					labelStyle.Render(d.ID), valueStyle.Render(d.Title), labelStyle.Render(saved),
					preview(d.Content, 60))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolve[*services.DraftService](c, cmd, di.Drafts)
			if err != nil {
				return err
			}
			d, err := svc.Get(args[0])
			if err != nil {
				return err
			}
			printBox(cmd.OutOrStdout(), d.Title, d.Content)
			return nil
		},
	}

	var title, id string
	save := &cobra.Command{
		Use:   "save [text...]",
		Short: "Save text as a draft (stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolve[*services.DraftService](c, cmd, di.Drafts)
			if err != nil {
				return err
			}
			text, err := inputText(cmd, args)
			if err != nil {
				return err
			}
			result, err := svc.Save(models.SaveDraftRequest{EditingID: id, Title: title, Content: text})
			if err != nil {
				return err
			}
			verb := "saved"
			if result.Updated {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", okStyle.Render(verb), result.Draft.Title, result.Draft.ID)
			return nil
		},
	}
	save.Flags().StringVar(&title, "title", "", "draft title")
	save.Flags().StringVar(&id, "id", "", "update the draft with this id")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolve[*services.DraftService](c, cmd, di.Drafts)
			if err != nil {
				return err
			}
			if err := svc.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("deleted"), args[0])
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <drafts.json>",
		Short: "Import drafts exported by the browser version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolve[*services.DraftService](c, cmd, di.Drafts)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			result, err := svc.ImportLegacy(data)
			if err != nil {
				return err
			}
			printKV(cmd.OutOrStdout(), "Import", [][2]string{
				{"imported", strconv.Itoa(result.Imported)},
				{"skipped", strconv.Itoa(result.Skipped)},
			})
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export <drafts.xlsx>",
		Short: "Export drafts to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolve[*services.DraftService](c, cmd, di.Drafts)
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			n, err := svc.ExportXLSX(f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d drafts to %s\n", okStyle.Render("exported"), n, args[0])
			return nil
		},
	}

	drafts.AddCommand(list, show, save, remove, importCmd, export)
	return drafts
}

// ========================================
// 生成器
// ========================================

func (c *cli) hooksCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "List hook templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hooks, err := services.NewHookService()
			if err != nil {
				return err
			}

			items := hooks.All()
			if category != "" {
				if items, err = hooks.ByCategory(models.HookCategory(category)); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, h := range items {
				fmt.Fprintf(out, "%s  %s\n", labelStyle.Render(fmt.Sprintf("%-13s", h.ID)), h.Template)
			}
			st := hooks.Stats()
			fmt.Fprintln(out, labelStyle.Render(fmt.Sprintf("curiosity %d · story %d · provoke %d · total %d",
				st.Curiosity, st.Story, st.Provoke, st.Total)))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "curiosity, story or provoke")
	return cmd
}

func (c *cli) generateCmd() *cobra.Command {
	var req models.GeneratePostRequest
	var tone, category string
	var save bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a concise and a story-rich post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			llmService, err := resolve[*services.LLMService](c, cmd, di.LLM)
			if err != nil {
				return err
			}
			if !llmService.IsReady() {
				return fmt.Errorf("generation is not configured: %s", llmService.GetReadyState())
			}
			posts, err := resolve[*services.PostService](c, cmd, di.Posts)
			if err != nil {
				return err
			}

			req.Tone = models.Tone(tone)
			req.HookCategory = models.HookCategory(category)

			ctx, cancel := context.WithTimeout(cmd.Context(), 90*time.Second)
			defer cancel()

			result, err := posts.GeneratePost(ctx, req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printBox(out, "Concise", result.Concise)
			printBox(out, "Story-rich", result.StoryRich)

			if save {
				drafts, err := resolve[*services.DraftService](c, cmd, di.Drafts)
				if err != nil {
					return err
				}
				saved, err := drafts.Save(models.SaveDraftRequest{Content: result.StoryRich})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, okStyle.Render("saved"), saved.Draft.Title)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Topic, "topic", "", "what the post is about")
	flags.StringVar(&req.HookID, "hook", "", "hook template id, e.g. story-0")
	flags.StringVar(&req.HookTemplate, "hook-text", "", "hook template text")
	flags.StringVar(&category, "category", "", "hook category when --hook-text is used")
	flags.StringVar(&tone, "tone", string(models.ToneProfessional), "Professional, Casual, Motivational or Analytical")
	flags.StringVar(&req.Description, "description", "", "extra context for the post")
	flags.BoolVar(&req.UseEmojis, "emojis", false, "use emojis")
	flags.BoolVar(&req.AddHashtags, "hashtags", false, "add hashtags")
	flags.BoolVar(&req.UseBullets, "bullets", false, "use bullet points")
	flags.BoolVar(&save, "save", false, "save the story-rich version as a draft")
	return cmd
}

// ========================================
// 静态资源
// ========================================

func (c *cli) assetsCmd() *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Render the sitemap and social share image",
	}

	var siteURL, pagesFile, sitemapOut string
	sitemap := &cobra.Command{
		Use:   "sitemap",
		Short: "Write sitemap.xml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pages := assets.DefaultPages
			if pagesFile != "" {
				data, err := os.ReadFile(pagesFile)
				if err != nil {
					return err
				}
				pages = nil
				if err := yaml.Unmarshal(data, &pages); err != nil {
					return fmt.Errorf("parse %s: %w", pagesFile, err)
				}
			}

			data, err := assets.Sitemap(siteURL, pages, time.Now())
			if err != nil {
				return err
			}
			return writeOutput(cmd, sitemapOut, data)
		},
	}
	sitemap.Flags().StringVar(&siteURL, "site", "https://ravlo.ai", "site base URL")
	sitemap.Flags().StringVar(&pagesFile, "pages", "", "YAML list of pages (path, changefreq, priority)")
	sitemap.Flags().StringVarP(&sitemapOut, "out", "o", "", "output file (default stdout)")

	var opts assets.OGOptions
	var imageOut string
	ogImage := &cobra.Command{
		Use:   "og-image",
		Short: "Render the 1200x630 share image as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := assets.DefaultOGOptions(siteHost(siteURL))
			if opts.Title == "" {
				opts.Title = defaults.Title
			}
			if opts.Subtitle == "" {
				opts.Subtitle = defaults.Subtitle
			}
			if opts.Description == "" {
				opts.Description = defaults.Description
			}
			if opts.Features == "" {
				opts.Features = defaults.Features
			}
			if opts.Footer == "" {
				opts.Footer = defaults.Footer
			}

			if imageOut == "" {
				return fmt.Errorf("--out is required for binary output")
			}
			var buf bytes.Buffer
			if err := assets.OGImage(&buf, opts); err != nil {
				return err
			}
			return writeOutput(cmd, imageOut, buf.Bytes())
		},
	}
	ogImage.Flags().StringVar(&siteURL, "site", "https://ravlo.ai", "site base URL shown in the footer")
	ogImage.Flags().StringVar(&opts.Title, "title", "", "headline")
	ogImage.Flags().StringVar(&opts.Subtitle, "subtitle", "", "subtitle")
	ogImage.Flags().StringVar(&opts.Description, "description", "", "description line")
	ogImage.Flags().StringVar(&opts.Features, "features", "", "feature line")
	ogImage.Flags().StringVarP(&imageOut, "out", "o", "", "output PNG file")

	assetsCmd.AddCommand(sitemap, ogImage)
	return assetsCmd
}

func siteHost(siteURL string) string {
	if u, err := url.Parse(siteURL); err == nil && u.Host != "" {
		return u.Host
	}
	return siteURL
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d bytes)\n", okStyle.Render("wrote"), path, len(data))
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CNHLAIA/XHS-Scraper/pkg/media"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ratelimit"
	"github.com/CNHLAIA/XHS-Scraper/pkg/scraper"
	"github.com/CNHLAIA/XHS-Scraper/pkg/ui"
	"github.com/CNHLAIA/XHS-Scraper/pkg/xhs"
)

var (
	maxPages      int
	resumeCrawl   bool
	forceRestart  bool
	startCursor   string
	xsecToken     string
	subRoot       string
	searchPage    int
	searchPages   int
	searchSize    int
	searchSort    string
	searchType    string
	mediaPattern  string
	mediaDir      string
	checkpointDir string
)

// signalContext is cancelled on Ctrl-C so crawls can record a checkpoint
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var userCmd = &cobra.Command{
	Use:   "user <user-id|self>",
	Short: "Fetch a user profile",
	Long: `Fetch the public profile of a user, or of the logged-in account
when the argument is 'self'.`,
	Example: `  xhs user 5ff0e6410000000001008400
  xhs user self --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, sess, err := newScraper(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		var user *xhs.User
		target := strings.TrimSpace(args[0])
		if target == "self" {
			user, err = s.Users.GetSelfInfo(ctx)
		} else {
			user, err = s.Users.GetUserInfo(ctx, target)
		}
		if err != nil {
			return err
		}

		ui.PrintInfo("User", fmt.Sprintf("%s (%s)", user.Nickname, user.UserID))
		return writeResults(user, "user_"+target)
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes <user-id>",
	Short: "Collect every note a user has posted",
	Long: `Follow the user_posted cursor until the server reports no more
notes or --max-pages is reached. An interrupted crawl leaves a checkpoint;
pass --resume to continue it or --force-restart to discard it.`,
	Example: `  xhs notes 5ff0e6410000000001008400
  xhs notes 5ff0e6410000000001008400 --max-pages 5 --format both
  xhs notes 5ff0e6410000000001008400 --resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, sess, err := newScraper(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		userID := strings.TrimSpace(args[0])
		ui.PrintInfo("Target user", userID)
		page, err := s.CrawlUserNotes(ctx, userID, crawlOptions())
		if err != nil && len(page.Items) == 0 {
			return err
		}
		ui.PrintInfo("Notes collected", fmt.Sprint(len(page.Items)))
		if werr := writeResults(page.Items, "notes_"+userID); werr != nil {
			return werr
		}
		return err
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <note-id|link>",
	Short: "Fetch one note",
	Long: `Fetch a single note through the feed endpoint. The xsec token comes
from the note's share link or from a listing that returned the note. A
full share link carries both the ID and the token.`,
	Example: `  xhs note 64f1a2b3000000001e03a1b2 --xsec-token ABcd...
  xhs note "https://www.xiaohongshu.com/explore/64f1a2b3000000001e03a1b2?xsec_token=ABcd..."`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, sess, err := newScraper(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		noteID, token, err := noteRef(args[0])
		if err != nil {
			return err
		}
		note, err := s.Notes.GetNote(ctx, noteID, token)
		if err != nil {
			return err
		}
		if note.NoteID == "" {
			ui.PrintWarning("Note not found or not visible to this session")
			return nil
		}
		ui.PrintInfo("Note", note.Title)
		ui.PrintInfo("Link", xhs.GetNoteURL(note.NoteID, note.XsecToken))
		return writeResults(note, "note_"+note.NoteID)
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <note-id>",
	Short: "Collect the comments on a note",
	Long: `Follow the comment cursor of a note. With --root, fetch one page of
replies under that comment instead.`,
	Example: `  xhs comments 64f1a2b3000000001e03a1b2 --max-pages 10
  xhs comments 64f1a2b3000000001e03a1b2 --root 6500aa0000000000140111ab`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, sess, err := newScraper(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		noteID := strings.TrimSpace(args[0])
		if subRoot != "" {
			page, err := s.Comments.GetSubComments(ctx, noteID, subRoot, startCursor)
			if err != nil {
				return err
			}
			ui.PrintInfo("Replies collected", fmt.Sprint(len(page.Items)))
			if page.HasMore {
				ui.PrintInfo("Next cursor", page.Cursor)
			}
			return writeResults(page.Items, "replies_"+subRoot)
		}

		page, err := s.CrawlComments(ctx, noteID, crawlOptions())
		if err != nil && len(page.Items) == 0 {
			return err
		}
		ui.PrintInfo("Comments collected", fmt.Sprint(len(page.Items)))
		if werr := writeResults(page.Items, "comments_"+noteID); werr != nil {
			return werr
		}
		return err
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search notes by keyword",
	Example: `  xhs search 咖啡 --sort time --type image
  xhs search "city walk" --page 2 --max-pages 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := scraper.ParseSortOrder(searchSort)
		if err != nil {
			return err
		}
		noteType, err := scraper.ParseNoteType(searchType)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		s, sess, err := newScraper(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		keyword := strings.Join(args, " ")
		opts := scraper.SearchOptions{
			Keyword:  keyword,
			Page:     searchPage,
			PageSize: searchSize,
			Sort:     sort,
			NoteType: noteType,
		}
		page, err := s.Search.SearchAll(ctx, opts, searchPages)
		if err != nil && len(page.Items) == 0 {
			return err
		}
		ui.PrintInfo("Results", fmt.Sprint(len(page.Items)))
		if werr := writeResults(page.Items, "search_"+keyword); werr != nil {
			return werr
		}
		return err
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <note-id|link>",
	Short: "Download a note's images and video",
	Example: `  xhs download 64f1a2b3000000001e03a1b2 --xsec-token ABcd...
  xhs download 64f1a2b3000000001e03a1b2 --pattern "{index}.{ext}" --dir ./media`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		s, sess, err := newScraper(ctx)
		if err != nil {
			return err
		}
		defer sess.Close()

		noteID, token, err := noteRef(args[0])
		if err != nil {
			return err
		}
		note, err := s.Notes.GetNote(ctx, noteID, token)
		if err != nil {
			return err
		}
		urls := media.NoteURLs(note)
		if len(urls) == 0 {
			ui.PrintWarning("Note has no media to download")
			return nil
		}

		dir := mediaDir
		if dir == "" {
			dir = filepath.Join(cfg.Output.Directory, "media", note.NoteID)
		}
		pattern := mediaPattern
		if pattern == "" {
			pattern = cfg.Download.FileNamePattern
		}

		opts := media.Options{
			Concurrency: cfg.Download.Concurrency,
			Timeout:     cfg.Download.Timeout,
			UserAgent:   cfg.XHS.UserAgent,
			Logger:      log,
		}
		if rpm := cfg.Download.RequestsPerMinute; rpm > 0 {
			limiter, err := ratelimit.NewSlidingWindow(rpm, time.Minute)
			if err != nil {
				return err
			}
			opts.Limiter = limiter
		}

		ui.PrintInfo("Downloading", fmt.Sprintf("%d files to %s", len(urls), dir))
		progress := ui.NewProgress("Downloading", len(urls))
		opts.Progress = func(done, total int, failed bool) { progress.Add(failed) }
		paths, err := media.NewDownloader(opts).Download(ctx, urls, dir, pattern, note.NoteID)
		progress.Finish()
		ui.PrintSuccess(fmt.Sprintf("Saved %d of %d files", len(paths), len(urls)))
		return err
	},
}

// noteRef accepts a note ID or a share link; --xsec-token wins over a
// token found in the link.
func noteRef(arg string) (string, string, error) {
	noteID, token, err := xhs.ParseNoteLink(arg)
	if err != nil {
		return "", "", err
	}
	if xsecToken != "" {
		token = xsecToken
	}
	return noteID, token, nil
}

func crawlOptions() scraper.CrawlOptions {
	return scraper.CrawlOptions{
		MaxPages:      maxPages,
		Resume:        resumeCrawl,
		ForceRestart:  forceRestart,
		CheckpointDir: checkpointDir,
	}
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&maxPages, "max-pages", scraper.DefaultMaxPages, "maximum number of pages to fetch")
	cmd.Flags().BoolVar(&resumeCrawl, "resume", false, "continue from the saved checkpoint")
	cmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard any saved checkpoint")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "directory for crawl checkpoints")
}

func init() {
	rootCmd.AddCommand(userCmd, notesCmd, noteCmd, commentsCmd, searchCmd, downloadCmd)

	addCrawlFlags(notesCmd)
	addCrawlFlags(commentsCmd)
	commentsCmd.Flags().StringVar(&subRoot, "root", "", "fetch replies under this comment id")
	commentsCmd.Flags().StringVar(&startCursor, "cursor", "", "reply cursor to start from (with --root)")

	noteCmd.Flags().StringVar(&xsecToken, "xsec-token", "", "xsec token of the note")
	downloadCmd.Flags().StringVar(&xsecToken, "xsec-token", "", "xsec token of the note")
	downloadCmd.Flags().StringVar(&mediaPattern, "pattern", "", "file name pattern ({index}, {ext}, {note_id})")
	downloadCmd.Flags().StringVar(&mediaDir, "dir", "", "directory for media files (default <output>/media/<note-id>)")

	searchCmd.Flags().IntVar(&searchPage, "page", 1, "first page to fetch")
	searchCmd.Flags().IntVar(&searchSize, "page-size", xhs.MaxSearchPageSize, "results per page (at most 20)")
	searchCmd.Flags().StringVar(&searchSort, "sort", "general", "sort order: general, time, popularity")
	searchCmd.Flags().StringVar(&searchType, "type", "all", "note type: all, video, image")
	searchCmd.Flags().IntVar(&searchPages, "max-pages", 1, "number of pages to fetch")
}

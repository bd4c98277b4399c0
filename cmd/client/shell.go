package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/atinyakov/wishkeeper/internal/catalog"
	"github.com/atinyakov/wishkeeper/internal/client/remote"
	"github.com/atinyakov/wishkeeper/internal/models"
	"github.com/atinyakov/wishkeeper/internal/wishlist"
)

const helpText = `Available commands:
  products [category]  list catalog products, * marks wishlisted ones
  categories           list product categories
  search <terms>       search names, descriptions and categories
  show <id>            show product details
  wishlist             list your wishlist
  add <id>             add a product to your wishlist
  remove <id>          remove a product from your wishlist
  login                sign in with the client certificate
  logout               sign out
  whoami               show the signed-in user
  state                show the wishlist load state
  reload               reload the wishlist from the server
  help                 show this help
  exit                 leave the shell`

type wishlistStore interface {
	IsWishlisted(productID string) bool
	Add(ctx context.Context, product models.Product) error
	Remove(ctx context.Context, productID string) error
	Entries() []models.Entry
	GetState() wishlist.State
	Reload(ctx context.Context) error
}

type authSession interface {
	Current() *models.Identity
	SignIn(ctx context.Context) (*models.Identity, error)
	SignOut() error
}

// shell is the interactive wishlist client.
type shell struct {
	catalog catalog.Service
	store   wishlistStore
	session authSession
	out     io.Writer
	prompt  string
}

// run reads commands from in until exit or EOF.
func (s *shell) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.prompt)
		if !scanner.Scan() {
			return
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(s.out, "Bye")
			return
		}
		s.exec(ctx, args[0], args[1:])
	}
}

func (s *shell) exec(ctx context.Context, cmd string, args []string) {
	var err error
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "products":
		category := catalog.AllCategories
		if len(args) > 0 {
			category = args[0]
		}
		err = s.products(ctx, category)
	case "categories":
		err = s.categories(ctx)
	case "search":
		err = s.search(ctx, strings.Join(args, " "))
	case "show":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "Usage: show <id>")
			return
		}
		err = s.show(ctx, args[0])
	case "wishlist":
		s.wishlist()
	case "add":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "Usage: add <id>")
			return
		}
		err = s.add(ctx, args[0])
	case "remove":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "Usage: remove <id>")
			return
		}
		err = s.remove(ctx, args[0])
	case "login":
		var id *models.Identity
		id, err = s.session.SignIn(ctx)
		if err == nil {
			fmt.Fprintf(s.out, "Signed in as %s\n", id.Email)
		}
	case "logout":
		err = s.session.SignOut()
		if err == nil {
			fmt.Fprintln(s.out, "Signed out")
		}
	case "whoami":
		if id := s.session.Current(); id != nil {
			fmt.Fprintf(s.out, "%s (%s)\n", id.Email, id.UID)
		} else {
			fmt.Fprintln(s.out, "Not signed in")
		}
	case "state":
		st := s.store.GetState()
		fmt.Fprintf(s.out, "%s, %d entries\n", st.LoadState, len(st.Entries))
		if st.LoadErr != nil {
			fmt.Fprintf(s.out, "last error: %v\n", st.LoadErr)
		}
	case "reload":
		if err = s.store.Reload(ctx); err == nil {
			st := s.store.GetState()
			fmt.Fprintf(s.out, "%s, %d entries\n", st.LoadState, len(st.Entries))
			if st.LoadErr != nil {
				fmt.Fprintf(s.out, "last error: %v\n", st.LoadErr)
			}
		}
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %s\n", describe(err))
	}
}

func (s *shell) products(ctx context.Context, category string) error {
	all, err := s.catalog.ListAll(ctx)
	if err != nil {
		return err
	}
	s.printProducts(catalog.ByCategory(all, category))
	return nil
}

func (s *shell) categories(ctx context.Context) error {
	all, err := s.catalog.ListAll(ctx)
	if err != nil {
		return err
	}
	groups := catalog.GroupByCategory(all)
	for _, c := range catalog.Categories(all) {
		n := len(all)
		if c != catalog.AllCategories {
			n = len(groups[c])
		}
		fmt.Fprintf(s.out, "%s (%d)\n", c, n)
	}
	return nil
}

func (s *shell) search(ctx context.Context, query string) error {
	all, err := s.catalog.ListAll(ctx)
	if err != nil {
		return err
	}
	found := catalog.Search(all, query)
	if len(found) == 0 {
		fmt.Fprintln(s.out, "No products found")
		return nil
	}
	s.printProducts(found)
	return nil
}

func (s *shell) show(ctx context.Context, id string) error {
	p, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintln(s.out, "Product not found")
		return nil
	}
	fmt.Fprintf(s.out, "%s  %s\n", p.ID, p.Name)
	fmt.Fprintf(s.out, "Price:    %.2f\n", p.Price)
	fmt.Fprintf(s.out, "Category: %s\n", p.Category)
	fmt.Fprintf(s.out, "Rating:   %.1f\n", p.EffectiveRating())
	if p.Description != "" {
		fmt.Fprintln(s.out, p.Description)
	}
	if s.store.IsWishlisted(p.ID) {
		fmt.Fprintln(s.out, "On your wishlist")
	}
	return nil
}

func (s *shell) wishlist() {
	entries := s.store.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "Your wishlist is empty")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		marker := ""
		if !e.Persisted() {
			marker = " (not saved)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f%s\n", e.ID, e.Name, e.Price, marker)
	}
	_ = tw.Flush()
}

func (s *shell) add(ctx context.Context, id string) error {
	p, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintln(s.out, "Product not found")
		return nil
	}
	if err := s.store.Add(ctx, *p); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Added %s to your wishlist\n", p.Name)
	return nil
}

func (s *shell) remove(ctx context.Context, id string) error {
	listed := s.store.IsWishlisted(id)
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	if !listed {
		fmt.Fprintln(s.out, "Product is not on your wishlist")
		return nil
	}
	fmt.Fprintf(s.out, "Removed %s from your wishlist\n", id)
	return nil
}

func (s *shell) printProducts(products []models.Product) {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, p := range products {
		marker := " "
		if s.store.IsWishlisted(p.ID) {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%.2f\t%s\n", marker, p.ID, p.Name, p.Price, strings.ToLower(p.Category))
	}
	_ = tw.Flush()
}

// describe turns wishlist failures into user-facing messages.
func describe(err error) string {
	switch {
	case errors.Is(err, wishlist.ErrUnauthenticated):
		return "please login first"
	case errors.Is(err, wishlist.ErrOperationInProgress):
		return "another operation is still running, try again"
	case errors.Is(err, wishlist.ErrLoadFailed):
		return "your wishlist could not be loaded, run reload and try again"
	case remote.IsStatus(err, http.StatusUnauthorized):
		return "the server does not know this certificate, register first"
	case errors.Is(err, wishlist.ErrEntryNotPersisted):
		return "the item is not saved yet, run reload and try again"
	case errors.Is(err, wishlist.ErrRemoteWriteFailed):
		var we *wishlist.Error
		if errors.As(err, &we) && we.Err != nil {
			return "server rejected the change: " + we.Err.Error()
		}
		return "server rejected the change"
	}
	return err.Error()
}

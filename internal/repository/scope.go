package repository

import (
	"context"
	"fmt"
	"strings"
)

type userScoped struct {
	Store
	root string
}

// ForUser restricts every operation to users/{uid} and its subcollections.
func ForUser(s Store, uid string) Store {
	return &userScoped{Store: s, root: UserDoc(uid)}
}

func (u *userScoped) allowed(path string) error {
	p := strings.Trim(path, "/")
	if p == u.root || strings.HasPrefix(p, u.root+"/") {
		return nil
	}
	return fmt.Errorf("%w: %s is outside %s", ErrPermissionDenied, path, u.root)
}

func (u *userScoped) Get(ctx context.Context, path string) (Document, error) {
	if err := u.allowed(path); err != nil {
		return Document{}, err
	}
	return u.Store.Get(ctx, path)
}

func (u *userScoped) Set(ctx context.Context, path string, data map[string]any, merge bool) error {
	if err := u.allowed(path); err != nil {
		return err
	}
	return u.Store.Set(ctx, path, data, merge)
}

func (u *userScoped) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := u.allowed(path); err != nil {
		return err
	}
	return u.Store.Update(ctx, path, fields)
}

func (u *userScoped) Delete(ctx context.Context, path string) error {
	if err := u.allowed(path); err != nil {
		return err
	}
	return u.Store.Delete(ctx, path)
}

func (u *userScoped) List(ctx context.Context, q Query) ([]Document, error) {
	if err := u.allowed(q.Collection); err != nil {
		return nil, err
	}
	return u.Store.List(ctx, q)
}

func (u *userScoped) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := u.allowed(q.Collection); err != nil {
		return nil, err
	}
	return u.Store.Subscribe(ctx, q)
}

// Close is a no-op; the underlying store outlives the scope.
func (u *userScoped) Close() {}

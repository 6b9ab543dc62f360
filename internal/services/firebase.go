package services

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// InitFirebase initializes the Firebase Admin SDK. storageBucket may be empty
// when documents go to OSS.
func InitFirebase(ctx context.Context, credPath, storageBucket string) (*firebase.App, error) {
	opt := option.WithCredentialsFile(credPath)
	var conf *firebase.Config
	if storageBucket != "" {
		conf = &firebase.Config{StorageBucket: storageBucket}
	}
	return firebase.NewApp(ctx, conf, opt)
}

// InitFirebaseAuth returns the auth client used for session cookies
func InitFirebaseAuth(ctx context.Context, app *firebase.App) (*auth.Client, error) {
	return app.Auth(ctx)
}
